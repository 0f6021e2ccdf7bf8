package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"canteen/internal/domain"
)

type record[T any] struct {
	val     T
	version uint64
}

// MemoryStore объединённое in-memory хранилище с оптимистичными транзакциями:
// транзакция запоминает версии прочитанных записей и при коммите проверяет,
// что их никто не изменил.
type MemoryStore struct {
	mu         sync.RWMutex
	orders     map[string]record[domain.Order]
	counters   map[string]record[int64]
	recipients map[string]string
	menu       map[string]domain.MenuItem
	feedback   map[string]domain.Feedback
	favorites  map[string][]string
	feed       *Hub
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		orders:     make(map[string]record[domain.Order]),
		counters:   make(map[string]record[int64]),
		recipients: make(map[string]string),
		menu:       make(map[string]domain.MenuItem),
		feedback:   make(map[string]domain.Feedback),
		favorites:  make(map[string][]string),
		feed:       NewHub(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	m.feed.Publish(nil, m.now())
	return m
}

// NewMemoryBackend собирает Store поверх одного MemoryStore
func NewMemoryBackend(policy RetryPolicy) *Store {
	m := NewMemoryStore()
	return &Store{
		Orders:     NewMemoryOrders(m),
		Counters:   NewMemoryCounters(m),
		Recipients: NewMemoryRecipients(m),
		Menu:       m,
		Feedback:   NewMemoryFeedback(m),
		Favorites:  NewMemoryFavorites(m),
		Tx:         NewMemoryTx(m, policy),
		Feed:       m,
		Close: func(context.Context) error {
			m.feed.Close()
			return nil
		},
	}
}

// transaction state
type txKey struct{}

type memTx struct {
	orderReads   map[string]uint64
	counterReads map[string]uint64
	orders       map[string]domain.Order
	counters     map[string]int64
}

func newMemTx() *memTx {
	return &memTx{
		orderReads:   make(map[string]uint64),
		counterReads: make(map[string]uint64),
		orders:       make(map[string]domain.Order),
		counters:     make(map[string]int64),
	}
}

func txFrom(ctx context.Context) *memTx {
	tx, _ := ctx.Value(txKey{}).(*memTx)
	return tx
}

func (tx *memTx) seeOrder(id string, version uint64) {
	if _, ok := tx.orderReads[id]; !ok {
		tx.orderReads[id] = version
	}
}

func (tx *memTx) seeCounter(batch string, version uint64) {
	if _, ok := tx.counterReads[batch]; !ok {
		tx.counterReads[batch] = version
	}
}

// commit проверяет версии и применяет буфер записей атомарно
func (m *MemoryStore) commit(tx *memTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, v := range tx.orderReads {
		if m.orders[id].version != v {
			return fmt.Errorf("%w: order %s", ErrConflict, id)
		}
	}
	for batch, v := range tx.counterReads {
		if m.counters[batch].version != v {
			return fmt.Errorf("%w: counter %s", ErrConflict, batch)
		}
	}
	for id, o := range tx.orders {
		m.orders[id] = record[domain.Order]{val: o, version: m.orders[id].version + 1}
	}
	for batch, v := range tx.counters {
		m.counters[batch] = record[int64]{val: v, version: m.counters[batch].version + 1}
	}
	if len(tx.orders) > 0 {
		m.publishLocked()
	}
	return nil
}

// publishLocked вызывается под m.mu, чтобы снимки шли в порядке коммитов
func (m *MemoryStore) publishLocked() {
	all := make([]domain.Order, 0, len(m.orders))
	for _, r := range m.orders {
		all = append(all, r.val.Clone())
	}
	m.feed.Publish(all, m.now())
}

// Ensure interfaces
var (
	_ MenuRepository = (*MemoryStore)(nil)
	_ ChangeFeed     = (*MemoryStore)(nil)
)

func (m *MemoryStore) Subscribe(ctx context.Context, match func(domain.Order) bool) (*Subscription, error) {
	return m.feed.Subscribe(ctx, match)
}

// MenuRepository implementation
func (m *MemoryStore) Create(ctx context.Context, it *domain.MenuItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	it.CreatedAt = m.now()
	it.UpdatedAt = it.CreatedAt
	m.menu[it.ID] = *it
	return nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (*domain.MenuItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.menu[id]
	if !ok {
		return nil, ErrNotFound
	}
	// return copy
	cp := it
	return &cp, nil
}

func (m *MemoryStore) Update(ctx context.Context, it *domain.MenuItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.menu[it.ID]
	if !ok {
		return ErrNotFound
	}
	it.CreatedAt = old.CreatedAt
	it.UpdatedAt = m.now()
	m.menu[it.ID] = *it
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.menu[id]; !ok {
		return ErrNotFound
	}
	delete(m.menu, id)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, f MenuFilter) ([]domain.MenuItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.MenuItem, 0)
	for _, it := range m.menu {
		if f.Match(it) {
			out = append(out, it)
		}
	}
	sortMenu(out)
	return out, nil
}

// OrderRepository implementation on wrapper type
type MemoryOrders struct{ store *MemoryStore }

func NewMemoryOrders(store *MemoryStore) *MemoryOrders { return &MemoryOrders{store: store} }

var _ OrderRepository = (*MemoryOrders)(nil)

func (mo *MemoryOrders) Create(ctx context.Context, o *domain.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = mo.store.now()
	}
	o.UpdatedAt = o.CreatedAt
	if tx := txFrom(ctx); tx != nil {
		mo.store.mu.RLock()
		_, exists := mo.store.orders[o.ID]
		mo.store.mu.RUnlock()
		if _, buffered := tx.orders[o.ID]; exists || buffered {
			return fmt.Errorf("order %s already exists", o.ID)
		}
		tx.seeOrder(o.ID, 0)
		tx.orders[o.ID] = o.Clone()
		return nil
	}
	mo.store.mu.Lock()
	defer mo.store.mu.Unlock()
	if _, exists := mo.store.orders[o.ID]; exists {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	mo.store.orders[o.ID] = record[domain.Order]{val: o.Clone(), version: 1}
	mo.store.publishLocked()
	return nil
}

func (mo *MemoryOrders) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	tx := txFrom(ctx)
	if tx != nil {
		if o, ok := tx.orders[id]; ok {
			cp := o.Clone()
			return &cp, nil
		}
	}
	mo.store.mu.RLock()
	r, ok := mo.store.orders[id]
	mo.store.mu.RUnlock()
	if tx != nil {
		tx.seeOrder(id, r.version)
	}
	if !ok {
		return nil, ErrNotFound
	}
	cp := r.val.Clone()
	return &cp, nil
}

func (mo *MemoryOrders) Update(ctx context.Context, o *domain.Order) error {
	o.UpdatedAt = mo.store.now()
	if tx := txFrom(ctx); tx != nil {
		if _, ok := tx.orders[o.ID]; !ok {
			mo.store.mu.RLock()
			r, exists := mo.store.orders[o.ID]
			mo.store.mu.RUnlock()
			tx.seeOrder(o.ID, r.version)
			if !exists {
				return ErrNotFound
			}
		}
		tx.orders[o.ID] = o.Clone()
		return nil
	}
	mo.store.mu.Lock()
	defer mo.store.mu.Unlock()
	r, ok := mo.store.orders[o.ID]
	if !ok {
		return ErrNotFound
	}
	mo.store.orders[o.ID] = record[domain.Order]{val: o.Clone(), version: r.version + 1}
	mo.store.publishLocked()
	return nil
}

func (mo *MemoryOrders) UpdateIfState(ctx context.Context, o *domain.Order, expected domain.OrderState) error {
	if tx := txFrom(ctx); tx != nil {
		cur, err := mo.GetByID(ctx, o.ID)
		if err != nil {
			return err
		}
		if cur.State != expected {
			return StateMismatch(o.ID, expected, cur.State)
		}
		return mo.Update(ctx, o)
	}
	mo.store.mu.Lock()
	defer mo.store.mu.Unlock()
	r, ok := mo.store.orders[o.ID]
	if !ok {
		return ErrNotFound
	}
	if r.val.State != expected {
		return StateMismatch(o.ID, expected, r.val.State)
	}
	o.UpdatedAt = mo.store.now()
	mo.store.orders[o.ID] = record[domain.Order]{val: o.Clone(), version: r.version + 1}
	mo.store.publishLocked()
	return nil
}

func (mo *MemoryOrders) List(ctx context.Context, f OrderFilter) ([]domain.Order, error) {
	tx := txFrom(ctx)
	mo.store.mu.RLock()
	out := make([]domain.Order, 0)
	for id, r := range mo.store.orders {
		o := r.val
		if tx != nil {
			if buffered, ok := tx.orders[id]; ok {
				o = buffered
			}
		}
		if !f.Match(o) {
			continue
		}
		if tx != nil {
			tx.seeOrder(id, r.version)
		}
		out = append(out, o.Clone())
	}
	if tx != nil {
		// созданные в этой транзакции
		for id, o := range tx.orders {
			if _, stored := mo.store.orders[id]; !stored && f.Match(o) {
				out = append(out, o.Clone())
			}
		}
	}
	mo.store.mu.RUnlock()
	sortByCreated(out)
	return out, nil
}

// MemoryCounters счётчики очереди
type MemoryCounters struct{ store *MemoryStore }

func NewMemoryCounters(store *MemoryStore) *MemoryCounters { return &MemoryCounters{store: store} }

var _ CounterRepository = (*MemoryCounters)(nil)

func (mc *MemoryCounters) Get(ctx context.Context, batch string) (int64, error) {
	tx := txFrom(ctx)
	if tx != nil {
		if v, ok := tx.counters[batch]; ok {
			return v, nil
		}
	}
	mc.store.mu.RLock()
	r := mc.store.counters[batch]
	mc.store.mu.RUnlock()
	if tx != nil {
		tx.seeCounter(batch, r.version)
	}
	return r.val, nil
}

func (mc *MemoryCounters) Set(ctx context.Context, batch string, value int64) error {
	if tx := txFrom(ctx); tx != nil {
		if _, ok := tx.counters[batch]; !ok {
			mc.store.mu.RLock()
			tx.seeCounter(batch, mc.store.counters[batch].version)
			mc.store.mu.RUnlock()
		}
		tx.counters[batch] = value
		return nil
	}
	mc.store.mu.Lock()
	defer mc.store.mu.Unlock()
	mc.store.counters[batch] = record[int64]{val: value, version: mc.store.counters[batch].version + 1}
	return nil
}

// MemoryRecipients токены устройств, вне транзакций
type MemoryRecipients struct{ store *MemoryStore }

func NewMemoryRecipients(store *MemoryStore) *MemoryRecipients {
	return &MemoryRecipients{store: store}
}

var _ RecipientRepository = (*MemoryRecipients)(nil)

func (mr *MemoryRecipients) Get(ctx context.Context, customerID string) (string, error) {
	mr.store.mu.RLock()
	defer mr.store.mu.RUnlock()
	tok, ok := mr.store.recipients[customerID]
	if !ok || tok == "" {
		return "", ErrNotFound
	}
	return tok, nil
}

func (mr *MemoryRecipients) Set(ctx context.Context, customerID, token string) error {
	mr.store.mu.Lock()
	defer mr.store.mu.Unlock()
	mr.store.recipients[customerID] = token
	return nil
}

func (mr *MemoryRecipients) Clear(ctx context.Context, customerID, token string) error {
	mr.store.mu.Lock()
	defer mr.store.mu.Unlock()
	if mr.store.recipients[customerID] == token {
		delete(mr.store.recipients, customerID)
	}
	return nil
}

// MemoryFeedback отзывы по id заказа
type MemoryFeedback struct{ store *MemoryStore }

func NewMemoryFeedback(store *MemoryStore) *MemoryFeedback { return &MemoryFeedback{store: store} }

var _ FeedbackRepository = (*MemoryFeedback)(nil)

func (mf *MemoryFeedback) Create(ctx context.Context, f *domain.Feedback) error {
	mf.store.mu.Lock()
	defer mf.store.mu.Unlock()
	if _, ok := mf.store.feedback[f.OrderID]; ok {
		return fmt.Errorf("%w: feedback for order %s", ErrAlreadyExists, f.OrderID)
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = mf.store.now()
	}
	mf.store.feedback[f.OrderID] = *f
	return nil
}

func (mf *MemoryFeedback) GetByOrder(ctx context.Context, orderID string) (*domain.Feedback, error) {
	mf.store.mu.RLock()
	defer mf.store.mu.RUnlock()
	f, ok := mf.store.feedback[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return &f, nil
}

func (mf *MemoryFeedback) List(ctx context.Context) ([]domain.Feedback, error) {
	mf.store.mu.RLock()
	out := make([]domain.Feedback, 0, len(mf.store.feedback))
	for _, f := range mf.store.feedback {
		out = append(out, f)
	}
	mf.store.mu.RUnlock()
	sortFeedback(out)
	return out, nil
}

// MemoryFavorites избранное в порядке добавления
type MemoryFavorites struct{ store *MemoryStore }

func NewMemoryFavorites(store *MemoryStore) *MemoryFavorites { return &MemoryFavorites{store: store} }

var _ FavoriteRepository = (*MemoryFavorites)(nil)

func (mf *MemoryFavorites) List(ctx context.Context, customerID string) ([]string, error) {
	mf.store.mu.RLock()
	defer mf.store.mu.RUnlock()
	return append([]string{}, mf.store.favorites[customerID]...), nil
}

func (mf *MemoryFavorites) Add(ctx context.Context, customerID, menuItemID string) error {
	mf.store.mu.Lock()
	defer mf.store.mu.Unlock()
	items := mf.store.favorites[customerID]
	for _, id := range items {
		if id == menuItemID {
			return nil
		}
	}
	mf.store.favorites[customerID] = append(items, menuItemID)
	return nil
}

func (mf *MemoryFavorites) Remove(ctx context.Context, customerID, menuItemID string) error {
	mf.store.mu.Lock()
	defer mf.store.mu.Unlock()
	items := mf.store.favorites[customerID]
	kept := items[:0]
	for _, id := range items {
		if id != menuItemID {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		delete(mf.store.favorites, customerID)
		return nil
	}
	mf.store.favorites[customerID] = kept
	return nil
}

// MemoryTx оптимистичная транзакция: fn работает с буфером, коммит проверяет версии.
// Вложенный вызов присоединяется к внешней транзакции.
type MemoryTx struct {
	store  *MemoryStore
	policy RetryPolicy
}

func NewMemoryTx(store *MemoryStore, policy RetryPolicy) *MemoryTx {
	return &MemoryTx{store: store, policy: policy}
}

func (t *MemoryTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}
	return Retry(ctx, t.policy, func(ctx context.Context) error {
		tx := newMemTx()
		if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
			return err
		}
		return t.store.commit(tx)
	})
}

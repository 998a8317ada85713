package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"streetbasket/internal/domain"
	"streetbasket/internal/repository"
)

// Mock repositories for testing
type mockAccountRepository struct {
	accounts map[int64]*domain.Account
	nextID   int64

	// skipExistsCheck makes ExistsByIdentifiers miss duplicates, as a concurrent insert would
	skipExistsCheck bool

	// lockedReads counts FindByIDForUpdate calls made inside a transaction
	lockedReads int
}

func newMockAccountRepository() *mockAccountRepository {
	return &mockAccountRepository{accounts: make(map[int64]*domain.Account)}
}

func (m *mockAccountRepository) taken(email string, phone *string) bool {
	for _, a := range m.accounts {
		if a.Email == email {
			return true
		}
		if phone != nil && a.Phone != nil && *a.Phone == *phone {
			return true
		}
	}
	return false
}

func (m *mockAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	if m.taken(account.Email, account.Phone) {
		return repository.ErrAccountAlreadyExists
	}
	m.nextID++
	account.ID = m.nextID
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	stored := *account
	m.accounts[account.ID] = &stored
	return nil
}

func (m *mockAccountRepository) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	found := *a
	return &found, nil
}

func (m *mockAccountRepository) FindByIDForUpdate(ctx context.Context, id int64) (*domain.Account, error) {
	if inTransaction(ctx) {
		m.lockedReads++
	}
	return m.FindByID(ctx, id)
}

func (m *mockAccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	for _, a := range m.accounts {
		if a.Email == domain.NormalizeEmail(email) {
			found := *a
			return &found, nil
		}
	}
	return nil, repository.ErrAccountNotFound
}

func (m *mockAccountRepository) FindByIdentifier(ctx context.Context, identifier string) (*domain.Account, error) {
	for _, a := range m.accounts {
		if a.Email == domain.NormalizeEmail(identifier) || (a.Phone != nil && *a.Phone == identifier) {
			found := *a
			return &found, nil
		}
	}
	return nil, repository.ErrAccountNotFound
}

func (m *mockAccountRepository) ExistsByIdentifiers(ctx context.Context, email string, phone *string) (bool, error) {
	if m.skipExistsCheck {
		return false, nil
	}
	return m.taken(email, phone), nil
}

func (m *mockAccountRepository) UpdateProfile(ctx context.Context, account *domain.Account) error {
	a, ok := m.accounts[account.ID]
	if !ok {
		return repository.ErrAccountNotFound
	}
	a.Name = account.Name
	a.Location = account.Location
	a.UpdatedAt = time.Now()
	account.UpdatedAt = a.UpdatedAt
	return nil
}

func (m *mockAccountRepository) UpdateDocument(ctx context.Context, id int64, documentPath string) error {
	a, ok := m.accounts[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	a.DocumentPath = &documentPath
	return nil
}

type mockRefreshTokenRepository struct {
	tokens map[string]*domain.RefreshToken
}

func newMockRefreshTokenRepository() *mockRefreshTokenRepository {
	return &mockRefreshTokenRepository{
		tokens: make(map[string]*domain.RefreshToken),
	}
}

func (m *mockRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	m.tokens[token.Token] = token
	return nil
}

func (m *mockRefreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.RefreshToken, error) {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if refreshToken.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return refreshToken, nil
}

func (m *mockRefreshTokenRepository) Revoke(ctx context.Context, token string) error {
	refreshToken, exists := m.tokens[token]
	if !exists {
		return repository.ErrRefreshTokenNotFound
	}
	refreshToken.Revoked = true
	return nil
}

type mockProductRepository struct {
	products  map[int64]*domain.Product
	nextID    int64
	hasOrders map[int64]bool
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{
		products:  make(map[int64]*domain.Product),
		hasOrders: make(map[int64]bool),
	}
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	if product.Price.IsNegative() {
		return fmt.Errorf("failed to create product: price check violated")
	}
	m.nextID++
	product.ID = m.nextID
	product.CreatedAt = time.Now()
	product.UpdatedAt = product.CreatedAt
	stored := *product
	m.products[product.ID] = &stored
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	if _, ok := m.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	product.UpdatedAt = time.Now()
	stored := *product
	m.products[product.ID] = &stored
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id int64) error {
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	if m.hasOrders[id] {
		return repository.ErrProductHasOrders
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	found := *p
	return &found, nil
}

func (m *mockProductRepository) FindByIDForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	return m.FindByID(ctx, id)
}

func (m *mockProductRepository) List(ctx context.Context, f domain.ProductFilter) ([]*domain.Product, int, error) {
	var matched []*domain.Product
	for _, p := range m.products {
		switch {
		case f.OwnerID != nil && p.OwnerID != *f.OwnerID:
			continue
		case f.NameContains != nil && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(*f.NameContains)):
			continue
		case f.PriceMin != nil && p.Price.LessThan(*f.PriceMin):
			continue
		case f.PriceMax != nil && p.Price.GreaterThan(*f.PriceMax):
			continue
		case f.StockState == domain.StockIn && !p.InStock():
			continue
		case f.StockState == domain.StockOut && p.InStock():
			continue
		}
		found := *p
		matched = append(matched, &found)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := start + f.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

type mockOrderRepository struct {
	orders   map[int64]*domain.Order
	products *mockProductRepository
	nextID   int64
	clock    time.Time
}

func newMockOrderRepository(products *mockProductRepository) *mockOrderRepository {
	return &mockOrderRepository{
		orders:   make(map[int64]*domain.Order),
		products: products,
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	if _, ok := m.products.products[order.ProductID]; !ok {
		return repository.ErrProductNotFound
	}
	m.nextID++
	m.clock = m.clock.Add(time.Minute)
	order.ID = m.nextID
	order.CreatedAt = m.clock
	order.UpdatedAt = m.clock
	stored := *order
	m.orders[order.ID] = &stored
	m.products.hasOrders[order.ProductID] = true
	return nil
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	found := *o
	return &found, nil
}

func (m *mockOrderRepository) FindByIDForUpdate(ctx context.Context, id int64) (*domain.Order, error) {
	return m.FindByID(ctx, id)
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, order *domain.Order) error {
	o, ok := m.orders[order.ID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.Status = order.Status
	return nil
}

func (m *mockOrderRepository) ListByVendor(ctx context.Context, vendorID int64) ([]*domain.Order, error) {
	return m.list(func(o *domain.Order) bool { return o.VendorID == vendorID }), nil
}

func (m *mockOrderRepository) ListByProductOwner(ctx context.Context, ownerID int64) ([]*domain.Order, error) {
	return m.list(func(o *domain.Order) bool {
		p, ok := m.products.products[o.ProductID]
		return ok && p.OwnerID == ownerID
	}), nil
}

func (m *mockOrderRepository) list(keep func(*domain.Order) bool) []*domain.Order {
	var orders []*domain.Order
	for _, o := range m.orders {
		if keep(o) {
			found := *o
			orders = append(orders, &found)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
	return orders
}

// mockTransactor runs fn directly; the mocks have nothing to roll back
type mockTransactor struct {
	calls int
}

type inTxKey struct{}

func (m *mockTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(context.WithValue(ctx, inTxKey{}, true))
}

func inTransaction(ctx context.Context) bool {
	in, _ := ctx.Value(inTxKey{}).(bool)
	return in
}

type mockFileStore struct {
	files     map[string]string
	nextID    int
	deleteErr error
	deleted   []string
}

func newMockFileStore() *mockFileStore {
	return &mockFileStore{files: make(map[string]string)}
}

func (m *mockFileStore) Save(ctx context.Context, dir, filename string, r io.Reader) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.nextID++
	path := fmt.Sprintf("%s/%d-%s", dir, m.nextID, filename)
	m.files[path] = string(content)
	return path, nil
}

func (m *mockFileStore) Delete(ctx context.Context, path string) error {
	m.deleted = append(m.deleted, path)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.files, path)
	return nil
}

package core

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/example/storefront/internal/db"
	"github.com/example/storefront/internal/identity"
	"github.com/example/storefront/internal/models"
)

// clock hands out strictly increasing write times.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.t.IsZero() {
		c.t = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type fakeIdentity struct {
	mu        sync.Mutex
	users     map[string]*models.Identity
	order     []string
	seq       int
	mutations int

	failCreate   error
	failSetClaim error
	failDelete   error
	blockList    bool
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{users: map[string]*models.Identity{}}
}

func (f *fakeIdentity) seed(uid, email string, admin bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[uid] = &models.Identity{UID: uid, Email: email, CustomClaims: map[string]interface{}{"admin": admin}}
	f.order = append(f.order, uid)
}

func cloneIdentity(u *models.Identity) *models.Identity {
	c := *u
	if u.CustomClaims != nil {
		c.CustomClaims = make(map[string]interface{}, len(u.CustomClaims))
		for k, v := range u.CustomClaims {
			c.CustomClaims[k] = v
		}
	}
	return &c
}

func (f *fakeIdentity) GetUser(_ context.Context, uid string) (*models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[uid]
	if !ok {
		return nil, fmt.Errorf("get user %q: %w", uid, identity.ErrUserNotFound)
	}
	return cloneIdentity(u), nil
}

func (f *fakeIdentity) CreateUser(_ context.Context, email, _, displayName string) (*models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate != nil {
		return nil, f.failCreate
	}
	for _, u := range f.users {
		if u.Email == email {
			return nil, fmt.Errorf("create user: %w", identity.ErrEmailExists)
		}
	}
	f.seq++
	f.mutations++
	u := &models.Identity{UID: "uid-" + strconv.Itoa(f.seq), Email: email, DisplayName: displayName}
	f.users[u.UID] = u
	f.order = append(f.order, u.UID)
	return cloneIdentity(u), nil
}

func (f *fakeIdentity) UpdateUser(_ context.Context, uid string, upd models.IdentityUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if upd.Empty() {
		return nil
	}
	u, ok := f.users[uid]
	if !ok {
		return fmt.Errorf("update user %q: %w", uid, identity.ErrUserNotFound)
	}
	f.mutations++
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.DisplayName != nil {
		u.DisplayName = *upd.DisplayName
	}
	if upd.PhotoURL != nil {
		u.PhotoURL = *upd.PhotoURL
	}
	return nil
}

func (f *fakeIdentity) DeleteUser(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete != nil {
		return f.failDelete
	}
	if _, ok := f.users[uid]; !ok {
		return fmt.Errorf("delete user %q: %w", uid, identity.ErrUserNotFound)
	}
	f.mutations++
	delete(f.users, uid)
	for i, id := range f.order {
		if id == uid {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeIdentity) SetAdminClaim(_ context.Context, uid string, admin bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSetClaim != nil {
		return f.failSetClaim
	}
	u, ok := f.users[uid]
	if !ok {
		return fmt.Errorf("set claims %q: %w", uid, identity.ErrUserNotFound)
	}
	f.mutations++
	if u.CustomClaims == nil {
		u.CustomClaims = map[string]interface{}{}
	}
	u.CustomClaims["admin"] = admin
	return nil
}

func (f *fakeIdentity) ListUsers(ctx context.Context, pageSize int, pageToken string) ([]*models.Identity, string, error) {
	if f.blockList {
		<-ctx.Done()
		return nil, "", ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if pageSize <= 0 {
		pageSize = identity.DefaultPageSize
	}
	start := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil {
			return nil, "", fmt.Errorf("bad page token %q", pageToken)
		}
		start = n
	}
	var out []*models.Identity
	end := start + pageSize
	if end > len(f.order) {
		end = len(f.order)
	}
	for _, uid := range f.order[start:end] {
		out = append(out, cloneIdentity(f.users[uid]))
	}
	next := ""
	if end < len(f.order) {
		next = strconv.Itoa(end)
	}
	return out, next, nil
}

type fakeUserRepo struct {
	mu        sync.Mutex
	docs      map[string]*models.UserProfile
	clock     clock
	mutations int

	failCreate error
	failUpdate error
	failDelete error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{docs: map[string]*models.UserProfile{}}
}

func (r *fakeUserRepo) GetByID(_ context.Context, uid string) (*models.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.docs[uid]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", uid, db.ErrNotFound)
	}
	c := *p
	return &c, nil
}

func (r *fakeUserRepo) Create(_ context.Context, profile *models.UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return r.failCreate
	}
	if _, ok := r.docs[profile.UID]; ok {
		return fmt.Errorf("user %q: %w", profile.UID, db.ErrAlreadyExists)
	}
	r.mutations++
	c := *profile
	c.UpdateTime = r.clock.next()
	r.docs[profile.UID] = &c
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, uid string, patch models.UserPatch, expected *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdate != nil {
		return r.failUpdate
	}
	p, ok := r.docs[uid]
	if !ok {
		return fmt.Errorf("user %q: %w", uid, db.ErrNotFound)
	}
	if expected != nil && !expected.Equal(p.UpdateTime) {
		return fmt.Errorf("user %q: %w", uid, db.ErrConflict)
	}
	r.mutations++
	if patch.Email != nil {
		p.Email = *patch.Email
	}
	if patch.DisplayName != nil {
		p.DisplayName = *patch.DisplayName
	}
	if patch.PhotoURL != nil {
		p.PhotoURL = *patch.PhotoURL
	}
	if patch.IsAdmin != nil {
		p.IsAdmin = *patch.IsAdmin
	}
	if patch.LastLoginAt != nil {
		t := *patch.LastLoginAt
		p.LastLoginAt = &t
	}
	p.UpdateTime = r.clock.next()
	p.UpdatedAt = p.UpdateTime
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failDelete != nil {
		return r.failDelete
	}
	if _, ok := r.docs[uid]; ok {
		r.mutations++
		delete(r.docs, uid)
	}
	return nil
}

func (r *fakeUserRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.docs)), nil
}

type fakeAdminRepo struct {
	mu        sync.Mutex
	docs      map[string]*models.AdminMarker
	mutations  int
	failGet    error
	failPut    error
	failDelete error
}

func newFakeAdminRepo() *fakeAdminRepo {
	return &fakeAdminRepo{docs: map[string]*models.AdminMarker{}}
}

func (r *fakeAdminRepo) Exists(_ context.Context, uid string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failGet != nil {
		return false, r.failGet
	}
	_, ok := r.docs[uid]
	return ok, nil
}

func (r *fakeAdminRepo) Get(_ context.Context, uid string) (*models.AdminMarker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.docs[uid]
	if !ok {
		return nil, fmt.Errorf("admin %q: %w", uid, db.ErrNotFound)
	}
	c := *m
	return &c, nil
}

func (r *fakeAdminRepo) Put(_ context.Context, marker *models.AdminMarker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failPut != nil {
		return r.failPut
	}
	if _, ok := r.docs[marker.UID]; ok {
		return nil
	}
	r.mutations++
	c := *marker
	r.docs[marker.UID] = &c
	return nil
}

func (r *fakeAdminRepo) Delete(_ context.Context, uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failDelete != nil {
		return r.failDelete
	}
	if _, ok := r.docs[uid]; ok {
		r.mutations++
		delete(r.docs, uid)
	}
	return nil
}

func (r *fakeAdminRepo) UpdateProfile(_ context.Context, uid, name, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.docs[uid]
	if !ok {
		return fmt.Errorf("admin %q: %w", uid, db.ErrNotFound)
	}
	r.mutations++
	m.Name, m.Email = name, email
	return nil
}

type fakeProductRepo struct {
	mu        sync.Mutex
	docs      map[string]*models.Product
	seq       int
	mutations int
	gets      int

	failUpdate error
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{docs: map[string]*models.Product{}}
}

func (r *fakeProductRepo) List(_ context.Context, f models.ProductFilter) (*models.ProductPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*models.Product
	for _, p := range r.docs {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Featured != nil && p.Featured != *f.Featured {
			continue
		}
		c := *p
		all = append(all, &c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	limit := f.Limit
	if limit <= 0 {
		limit = db.DefaultProductPageSize
	}
	start := 0
	if f.Cursor != "" {
		start = -1
		for i, p := range all {
			if p.ID == f.Cursor {
				start = i + 1
			}
		}
		if start < 0 {
			return nil, fmt.Errorf("cursor %q: %w", f.Cursor, db.ErrNotFound)
		}
	}
	page := &models.ProductPage{Products: []*models.Product{}}
	for i := start; i < len(all) && len(page.Products) < limit; i++ {
		page.Products = append(page.Products, all[i])
	}
	if len(page.Products) == limit {
		page.NextCursor = page.Products[limit-1].ID
	}
	return page, nil
}

func (r *fakeProductRepo) GetByID(_ context.Context, id string) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	p, ok := r.docs[id]
	if !ok {
		return nil, fmt.Errorf("product %q: %w", id, db.ErrNotFound)
	}
	c := *p
	return &c, nil
}

func (r *fakeProductRepo) Create(_ context.Context, product *models.Product) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.mutations++
	product.ID = "prod-" + strconv.Itoa(r.seq)
	c := *product
	r.docs[product.ID] = &c
	return product.ID, nil
}

func (r *fakeProductRepo) Update(_ context.Context, id string, patch models.ProductPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdate != nil {
		return r.failUpdate
	}
	p, ok := r.docs[id]
	if !ok {
		return fmt.Errorf("product %q: %w", id, db.ErrNotFound)
	}
	r.mutations++
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.Featured != nil {
		p.Featured = *patch.Featured
	}
	if patch.ImageURL != nil {
		p.ImageURL = *patch.ImageURL
	}
	if patch.ImagePath != nil {
		p.ImagePath = *patch.ImagePath
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *fakeProductRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutations++
	delete(r.docs, id)
	return nil
}

func (r *fakeProductRepo) Count(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.docs)), nil
}

func (r *fakeProductRepo) ReserveStock(_ context.Context, qty map[string]int) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prices := make(map[string]int64, len(qty))
	for id, n := range qty {
		p, ok := r.docs[id]
		if !ok {
			return nil, fmt.Errorf("product %q: %w", id, db.ErrNotFound)
		}
		if p.Stock < n {
			return nil, fmt.Errorf("product %q: %w", id, db.ErrInsufficientStock)
		}
		prices[id] = p.Price
	}
	for id, n := range qty {
		r.docs[id].Stock -= n
	}
	r.mutations++
	return prices, nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
	fail    error
}

func (a *fakeAudit) CreateAuditLog(_ context.Context, e models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail != nil {
		return a.fail
	}
	a.entries = append(a.entries, e)
	return nil
}

func (a *fakeAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Action
	}
	return out
}

type fakeEvents struct {
	mu     sync.Mutex
	events []models.UserEvent
	fail   error
}

func (e *fakeEvents) PublishUserEvent(_ context.Context, evt models.UserEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail != nil {
		return e.fail
	}
	e.events = append(e.events, evt)
	return nil
}

type fakeImages struct {
	mu       sync.Mutex
	objects  map[string][]byte
	deleted  []string
	seq      int
	failDrop error
}

func newFakeImages() *fakeImages {
	return &fakeImages{objects: map[string][]byte{}}
}

func (f *fakeImages) Upload(_ context.Context, name, _ string, r io.Reader) (*models.StoredImage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	path := fmt.Sprintf("products/%d_%s", f.seq, name)
	f.objects[path] = data
	return &models.StoredImage{Path: path, URL: "https://img.test/" + path}, nil
}

func (f *fakeImages) Delete(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDrop != nil {
		return f.failDrop
	}
	delete(f.objects, path)
	f.deleted = append(f.deleted, path)
	return nil
}

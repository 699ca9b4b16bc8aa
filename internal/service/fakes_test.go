package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fabiodmueller-cmd/CASSINO/internal/model"
	"github.com/fabiodmueller-cmd/CASSINO/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// memStore backs every fake repository. Services load in parallel, so all
// access goes through mu.
type memStore struct {
	mu        sync.Mutex
	clock     time.Time
	clients   map[uuid.UUID]model.Client
	operators map[uuid.UUID]model.Operator
	regions   map[uuid.UUID]model.Region
	machines  map[uuid.UUID]model.Machine
	links     []model.Link
	readings  []model.Reading
	users     []model.User
	audits    []model.AuditLog

	// readingCreateErr makes the n-th reading insert fail when failAfter reaches zero.
	readingCreateErr error
	failAfter        int
}

func newMemStore() *memStore {
	return &memStore{
		clock:     time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
		clients:   map[uuid.UUID]model.Client{},
		operators: map[uuid.UUID]model.Operator{},
		regions:   map[uuid.UUID]model.Region{},
		machines:  map[uuid.UUID]model.Machine{},
	}
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

type repos struct {
	store     *memStore
	clients   *fakeClientRepo
	operators *fakeOperatorRepo
	regions   *fakeRegionRepo
	machines  *fakeMachineRepo
	links     *fakeLinkRepo
	readings  *fakeReadingRepo
	users     *fakeUserRepo
	audits    *fakeAuditRepo
	tx        passThroughTx
}

func newRepos() repos {
	s := newMemStore()
	return repos{
		store:     s,
		clients:   &fakeClientRepo{s},
		operators: &fakeOperatorRepo{s},
		regions:   &fakeRegionRepo{s},
		machines:  &fakeMachineRepo{s},
		links:     &fakeLinkRepo{s},
		readings:  &fakeReadingRepo{s},
		users:     &fakeUserRepo{s},
		audits:    &fakeAuditRepo{s},
	}
}

type passThroughTx struct{}

func (passThroughTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

var _ repository.TransactionManager = passThroughTx{}

// Clients

type fakeClientRepo struct{ s *memStore }

func (r *fakeClientRepo) Create(_ context.Context, c *model.Client) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&c.ID)
	c.CreatedAt = r.s.tick()
	r.s.clients[c.ID] = *c
	return nil
}

func (r *fakeClientRepo) Update(_ context.Context, c *model.Client) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.clients[c.ID] = *c
	return nil
}

func (r *fakeClientRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.clients[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.s.clients, id)
	return nil
}

func (r *fakeClientRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.clients[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r *fakeClientRepo) List(ctx context.Context, search string, page, limit int) ([]model.Client, int64, error) {
	all, _ := r.ListAll(ctx)
	out := make([]model.Client, 0)
	for _, c := range all {
		if search == "" || strings.Contains(strings.ToLower(c.Name), strings.ToLower(search)) {
			out = append(out, c)
		}
	}
	return pageOf(out, page, limit), int64(len(out)), nil
}

func (r *fakeClientRepo) ListAll(_ context.Context) ([]model.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.Client, 0, len(r.s.clients))
	for _, c := range r.s.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Operators

type fakeOperatorRepo struct{ s *memStore }

func (r *fakeOperatorRepo) Create(_ context.Context, o *model.Operator) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&o.ID)
	o.CreatedAt = r.s.tick()
	r.s.operators[o.ID] = *o
	return nil
}

func (r *fakeOperatorRepo) Update(_ context.Context, o *model.Operator) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.operators[o.ID] = *o
	return nil
}

func (r *fakeOperatorRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.operators[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.s.operators, id)
	return nil
}

func (r *fakeOperatorRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Operator, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.operators[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &o, nil
}

func (r *fakeOperatorRepo) List(ctx context.Context, search string, page, limit int) ([]model.Operator, int64, error) {
	all, _ := r.ListAll(ctx)
	out := make([]model.Operator, 0)
	for _, o := range all {
		if search == "" || strings.Contains(strings.ToLower(o.Name), strings.ToLower(search)) {
			out = append(out, o)
		}
	}
	return pageOf(out, page, limit), int64(len(out)), nil
}

func (r *fakeOperatorRepo) ListAll(_ context.Context) ([]model.Operator, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.Operator, 0, len(r.s.operators))
	for _, o := range r.s.operators {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Regions

type fakeRegionRepo struct{ s *memStore }

func (r *fakeRegionRepo) Create(_ context.Context, g *model.Region) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&g.ID)
	g.CreatedAt = r.s.tick()
	r.s.regions[g.ID] = *g
	return nil
}

func (r *fakeRegionRepo) Update(_ context.Context, g *model.Region) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.regions[g.ID] = *g
	return nil
}

func (r *fakeRegionRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.regions[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.s.regions, id)
	return nil
}

func (r *fakeRegionRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Region, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	g, ok := r.s.regions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &g, nil
}

func (r *fakeRegionRepo) List(ctx context.Context, search string, page, limit int) ([]model.Region, int64, error) {
	all, _ := r.ListAll(ctx)
	out := make([]model.Region, 0)
	for _, g := range all {
		if search == "" || strings.Contains(strings.ToLower(g.Name), strings.ToLower(search)) {
			out = append(out, g)
		}
	}
	return pageOf(out, page, limit), int64(len(out)), nil
}

func (r *fakeRegionRepo) ListAll(_ context.Context) ([]model.Region, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.Region, 0, len(r.s.regions))
	for _, g := range r.s.regions {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Machines

type fakeMachineRepo struct{ s *memStore }

func (r *fakeMachineRepo) Create(_ context.Context, m *model.Machine) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.machines {
		if existing.Code == m.Code {
			return gorm.ErrDuplicatedKey
		}
	}
	ensureID(&m.ID)
	m.CreatedAt = r.s.tick()
	r.s.machines[m.ID] = *m
	return nil
}

func (r *fakeMachineRepo) Update(_ context.Context, m *model.Machine) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.machines[m.ID] = *m
	return nil
}

func (r *fakeMachineRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.machines[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.s.machines, id)
	return nil
}

func (r *fakeMachineRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Machine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.machines[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &m, nil
}

func (r *fakeMachineRepo) FindByCode(_ context.Context, code string) (*model.Machine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.machines {
		if m.Code == code {
			return &m, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeMachineRepo) List(ctx context.Context, f repository.MachineFilter, page, limit int) ([]model.Machine, int64, error) {
	all, _ := r.ListAll(ctx)
	out := make([]model.Machine, 0)
	for _, m := range all {
		if f.Search != "" && !strings.Contains(m.Code+" "+m.Name, f.Search) {
			continue
		}
		if f.ClientID != nil && m.ClientID != *f.ClientID {
			continue
		}
		if f.RegionID != nil && m.RegionID != *f.RegionID {
			continue
		}
		if f.Active != nil && m.Active != *f.Active {
			continue
		}
		out = append(out, m)
	}
	return pageOf(out, page, limit), int64(len(out)), nil
}

func (r *fakeMachineRepo) ListAll(_ context.Context) ([]model.Machine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.Machine, 0, len(r.s.machines))
	for _, m := range r.s.machines {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// Links

type fakeLinkRepo struct{ s *memStore }

func (r *fakeLinkRepo) Create(_ context.Context, l *model.Link) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&l.ID)
	if l.CreatedAt.IsZero() {
		l.CreatedAt = r.s.tick()
	}
	r.s.links = append(r.s.links, *l)
	return nil
}

func (r *fakeLinkRepo) Save(_ context.Context, l *model.Link) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.links {
		if r.s.links[i].ID == l.ID {
			r.s.links[i] = *l
			return nil
		}
	}
	r.s.links = append(r.s.links, *l)
	return nil
}

func (r *fakeLinkRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.links {
		if r.s.links[i].ID == id {
			r.s.links = append(r.s.links[:i], r.s.links[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeLinkRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Link, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.links {
		if l.ID == id {
			return &l, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeLinkRepo) ListByClient(_ context.Context, clientID uuid.UUID) ([]model.Link, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.Link, 0)
	for _, l := range r.s.links {
		if l.ClientID == clientID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *fakeLinkRepo) ListAll(_ context.Context) ([]model.Link, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]model.Link(nil), r.s.links...), nil
}

// Readings

type fakeReadingRepo struct{ s *memStore }

func (r *fakeReadingRepo) Create(_ context.Context, reading *model.Reading) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.readingCreateErr != nil {
		if r.s.failAfter == 0 {
			return r.s.readingCreateErr
		}
		r.s.failAfter--
	}
	ensureID(&reading.ID)
	reading.CreatedAt = r.s.tick()
	r.s.readings = append(r.s.readings, *reading)
	return nil
}

func (r *fakeReadingRepo) Save(_ context.Context, reading *model.Reading) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.readings {
		if r.s.readings[i].ID == reading.ID {
			r.s.readings[i] = *reading
			return nil
		}
	}
	r.s.readings = append(r.s.readings, *reading)
	return nil
}

func (r *fakeReadingRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.readings {
		if r.s.readings[i].ID == id {
			r.s.readings = append(r.s.readings[:i], r.s.readings[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeReadingRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Reading, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, reading := range r.s.readings {
		if reading.ID == id {
			return &reading, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeReadingRepo) List(_ context.Context, f repository.ReadingFilter) ([]model.Reading, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	machineIDs := make(map[uuid.UUID]bool, len(f.MachineIDs))
	for _, id := range f.MachineIDs {
		machineIDs[id] = true
	}

	out := make([]model.Reading, 0)
	for _, reading := range r.s.readings {
		if f.MachineID != nil && reading.MachineID != *f.MachineID {
			continue
		}
		if len(machineIDs) > 0 && !machineIDs[reading.MachineID] {
			continue
		}
		if f.ClientID != nil && reading.ClientID != *f.ClientID {
			continue
		}
		if !f.From.IsZero() && reading.ReadingDate.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && reading.ReadingDate.After(f.To) {
			continue
		}
		out = append(out, reading)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ReadingDate.Equal(out[j].ReadingDate) {
			return out[i].ReadingDate.After(out[j].ReadingDate)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	total := int64(len(out))
	if f.Limit > 0 {
		out = pageOf(out, f.Page, f.Limit)
	}
	return out, total, nil
}

// Users

type fakeUserRepo struct{ s *memStore }

func (r *fakeUserRepo) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	ensureID(&u.ID)
	u.CreatedAt = r.s.tick()
	r.s.users = append(r.s.users, *u)
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.ID.String() == id {
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == repository.NormalizeEmail(email) {
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) EmailTaken(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Audit

type fakeAuditRepo struct{ s *memStore }

func (r *fakeAuditRepo) Log(_ context.Context, entry *model.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ensureID(&entry.ID)
	entry.CreatedAt = r.s.tick()
	r.s.audits = append(r.s.audits, *entry)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, action string, page, limit int) ([]model.AuditLog, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.AuditLog, 0)
	for i := len(r.s.audits) - 1; i >= 0; i-- {
		if action == "" || r.s.audits[i].Action == action {
			out = append(out, r.s.audits[i])
		}
	}
	return pageOf(out, page, limit), int64(len(out)), nil
}

func (r *fakeAuditRepo) actions() []string {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]string, 0, len(r.s.audits))
	for _, a := range r.s.audits {
		out = append(out, a.Action)
	}
	return out
}

func pageOf[T any](items []T, page, limit int) []T {
	if limit <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// recordingHub collects broadcast events.
type recordingHub struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingHub) BroadcastEvent(eventType string, _ uuid.UUID, _ interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, eventType)
}

func (h *recordingHub) types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.events...)
}

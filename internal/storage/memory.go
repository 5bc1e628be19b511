package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xside/xside-server/internal/models"
)

// MemoryStore implements Store in memory. It backs handler tests and
// local development without a database. Transactions copy the data set
// and swap it back on commit, which is enough isolation for a single
// writer.
type MemoryStore struct {
	mu     sync.RWMutex
	parent *MemoryStore
	data   *memData
}

type memData struct {
	users   map[uuid.UUID]models.User
	clients map[uuid.UUID]models.Client
	grants  map[uuid.UUID]models.ClientUser
	items   map[uuid.UUID]models.Item
	files   map[uuid.UUID]models.ItemFile
	modules map[uuid.UUID]models.VideoModule
	logs    map[uuid.UUID]models.Log
}

func newMemData() *memData {
	return &memData{
		users:   make(map[uuid.UUID]models.User),
		clients: make(map[uuid.UUID]models.Client),
		grants:  make(map[uuid.UUID]models.ClientUser),
		items:   make(map[uuid.UUID]models.Item),
		files:   make(map[uuid.UUID]models.ItemFile),
		modules: make(map[uuid.UUID]models.VideoModule),
		logs:    make(map[uuid.UUID]models.Log),
	}
}

func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.clients {
		c.clients[k] = v
	}
	for k, v := range d.grants {
		c.grants[k] = v
	}
	for k, v := range d.items {
		c.items[k] = v
	}
	for k, v := range d.files {
		c.files[k] = v
	}
	for k, v := range d.modules {
		c.modules[k] = v
	}
	for k, v := range d.logs {
		c.logs[k] = v
	}
	return c
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemData()}
}

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }

// BeginTx returns a store operating on a copy of the data set
func (s *MemoryStore) BeginTx(ctx context.Context) (Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &MemoryStore{parent: s, data: s.data.clone()}, nil
}

// Commit publishes the transaction copy back to the parent store
func (s *MemoryStore) Commit() error {
	if s.parent == nil {
		return nil
	}
	s.parent.mu.Lock()
	s.parent.data = s.data
	s.parent.mu.Unlock()
	return nil
}

// Rollback discards the transaction copy
func (s *MemoryStore) Rollback() error { return nil }

func stamp(base *models.BaseModel) {
	if base.ID == uuid.Nil {
		base.ID = uuid.New()
	}
	now := time.Now()
	if base.CreatedAt.IsZero() {
		base.CreatedAt = now
	}
	base.UpdatedAt = now
}

// ===== Users =====

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.data.users {
		if u.Email == user.Email {
			return ErrDuplicateKey
		}
	}
	stamp(&user.BaseModel)
	s.data.users[user.ID] = *user
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.data.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.data.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.users[user.ID]; !ok {
		return ErrNotFound
	}
	for _, u := range s.data.users {
		if u.Email == user.Email && u.ID != user.ID {
			return ErrDuplicateKey
		}
	}
	user.UpdatedAt = time.Now()
	s.data.users[user.ID] = *user
	return nil
}

// ===== Clients and grants =====

func (s *MemoryStore) CreateClient(ctx context.Context, client *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.data.clients {
		if c.Name == client.Name {
			return ErrDuplicateKey
		}
	}
	stamp(&client.BaseModel)
	s.data.clients[client.ID] = *client
	return nil
}

func (s *MemoryStore) GetClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.data.clients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *MemoryStore) DeleteClient(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.clients[id]; !ok {
		return ErrNotFound
	}
	for _, item := range s.data.items {
		if item.ClientID == id {
			return ErrRestricted
		}
	}
	delete(s.data.clients, id)
	for gid, g := range s.data.grants {
		if g.ClientID == id {
			delete(s.data.grants, gid)
		}
	}
	return nil
}

func (s *MemoryStore) GrantClient(ctx context.Context, userID, clientID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.data.grants {
		if g.UserID == userID && g.ClientID == clientID {
			return nil
		}
	}
	grant := models.ClientUser{UserID: userID, ClientID: clientID}
	stamp(&grant.BaseModel)
	s.data.grants[grant.ID] = grant
	return nil
}

func (s *MemoryStore) UserHasClient(ctx context.Context, userID, clientID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userHasClient(userID, clientID), nil
}

func (s *MemoryStore) userHasClient(userID, clientID uuid.UUID) bool {
	for _, g := range s.data.grants {
		if g.UserID == userID && g.ClientID == clientID {
			return true
		}
	}
	return false
}

func (s *MemoryStore) GetClientForUser(ctx context.Context, id, userID uuid.UUID) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.data.clients[id]
	if !ok || !s.userHasClient(userID, id) {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *MemoryStore) GetClientByNameForUser(ctx context.Context, name string, userID uuid.UUID) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.data.clients {
		if c.Name == name && s.userHasClient(userID, c.ID) {
			c := c
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListClientsForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Client, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []models.Client
	for _, c := range s.data.clients {
		if s.userHasClient(userID, c.ID) {
			all = append(all, c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return insertionLess(all[i].CreatedAt, all[i].ID, all[j].CreatedAt, all[j].ID) })

	total := int64(len(all))
	all = page(all, limit, offset)

	out := make([]*models.Client, len(all))
	for i := range all {
		out[i] = &all[i]
	}
	return out, total, nil
}

// ===== Items =====

func (s *MemoryStore) CreateItem(ctx context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, i := range s.data.items {
		if i.ClientID == item.ClientID && i.Name == item.Name {
			return ErrDuplicateKey
		}
	}
	stamp(&item.BaseModel)
	if c, ok := s.data.clients[item.ClientID]; ok {
		item.ClientName = c.Name
	}
	s.data.items[item.ID] = *item
	return nil
}

func (s *MemoryStore) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.data.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if c, ok := s.data.clients[i.ClientID]; ok {
		i.ClientName = c.Name
	}
	return &i, nil
}

func (s *MemoryStore) UpdateItem(ctx context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.items[item.ID]; !ok {
		return ErrNotFound
	}
	for _, i := range s.data.items {
		if i.ClientID == item.ClientID && i.Name == item.Name && i.ID != item.ID {
			return ErrDuplicateKey
		}
	}
	item.UpdatedAt = time.Now()
	if c, ok := s.data.clients[item.ClientID]; ok {
		item.ClientName = c.Name
	}
	s.data.items[item.ID] = *item
	return nil
}

func (s *MemoryStore) DeleteItem(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.items[id]; !ok {
		return ErrNotFound
	}
	delete(s.data.items, id)
	for fid, f := range s.data.files {
		if f.ItemID == id {
			s.detachLogs(fid)
			delete(s.data.files, fid)
		}
	}
	return nil
}

func (s *MemoryStore) ListItemsForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Item, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []models.Item
	for _, i := range s.data.items {
		if s.userHasClient(userID, i.ClientID) {
			if c, ok := s.data.clients[i.ClientID]; ok {
				i.ClientName = c.Name
			}
			all = append(all, i)
		}
	}
	sort.Slice(all, func(i, j int) bool { return insertionLess(all[i].CreatedAt, all[i].ID, all[j].CreatedAt, all[j].ID) })

	total := int64(len(all))
	all = page(all, limit, offset)

	out := make([]*models.Item, len(all))
	for i := range all {
		out[i] = &all[i]
	}
	return out, total, nil
}

// ===== Item files =====

func (s *MemoryStore) CreateItemFile(ctx context.Context, file *models.ItemFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.data.files {
		if f.Path == file.Path {
			return ErrDuplicateKey
		}
		if f.ItemID == file.ItemID && f.Hash == file.Hash {
			return ErrDuplicateKey
		}
	}
	if file.ID == uuid.Nil {
		file.ID = uuid.New()
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now()
	}
	s.data.files[file.ID] = *file
	return nil
}

func (s *MemoryStore) ListItemFiles(ctx context.Context, itemID uuid.UUID) ([]*models.ItemFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []models.ItemFile
	for _, f := range s.data.files {
		if f.ItemID == itemID {
			all = append(all, f)
		}
	}
	sort.Slice(all, func(i, j int) bool { return insertionLess(all[i].CreatedAt, all[i].ID, all[j].CreatedAt, all[j].ID) })

	out := make([]*models.ItemFile, len(all))
	for i := range all {
		out[i] = &all[i]
	}
	return out, nil
}

func (s *MemoryStore) GetItemFileByPath(ctx context.Context, path string) (*models.ItemFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, f := range s.data.files {
		if f.Path == path {
			f := f
			return &f, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetItemFileByHash(ctx context.Context, itemID uuid.UUID, hash string) (*models.ItemFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, f := range s.data.files {
		if f.ItemID == itemID && f.Hash == hash {
			f := f
			return &f, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) DeleteItemFile(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.files[id]; !ok {
		return ErrNotFound
	}
	s.detachLogs(id)
	delete(s.data.files, id)
	return nil
}

// detachLogs clears the weak item-file reference, matching the SQL
// ON DELETE SET NULL behavior
func (s *MemoryStore) detachLogs(fileID uuid.UUID) {
	for lid, l := range s.data.logs {
		if l.ItemFileID != nil && *l.ItemFileID == fileID {
			l.ItemFileID = nil
			l.ItemFilePath = nil
			s.data.logs[lid] = l
		}
	}
}

func (s *MemoryStore) CountItemFiles(ctx context.Context, itemID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, f := range s.data.files {
		if f.ItemID == itemID {
			count++
		}
	}
	return count, nil
}

// ===== Video modules and logs =====

func (s *MemoryStore) CreateModule(ctx context.Context, module *models.VideoModule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.data.modules {
		if m.UserID == module.UserID {
			return ErrDuplicateKey
		}
	}
	stamp(&module.BaseModel)
	s.data.modules[module.ID] = *module
	return nil
}

func (s *MemoryStore) GetModuleByUser(ctx context.Context, userID uuid.UUID) (*models.VideoModule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.data.modules {
		if m.UserID == userID {
			m := m
			return &m, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CreateLog(ctx context.Context, log *models.Log) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !log.Event.Valid() {
		return ErrInvalidData
	}
	if log.ItemFileID != nil {
		f, ok := s.data.files[*log.ItemFileID]
		if !ok {
			return ErrRestricted
		}
		path := f.Path
		log.ItemFilePath = &path
	}
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	s.data.logs[log.ID] = *log
	return nil
}

func (s *MemoryStore) ListLogs(ctx context.Context, filters LogFilters, limit, offset int) ([]*models.Log, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []models.Log
	for _, l := range s.data.logs {
		if filters.ModuleID != nil && l.ModuleID != *filters.ModuleID {
			continue
		}
		if filters.ItemFileID != nil && (l.ItemFileID == nil || *l.ItemFileID != *filters.ItemFileID) {
			continue
		}
		if filters.Event != nil && l.Event != *filters.Event {
			continue
		}
		if filters.StartTime != nil && l.Timestamp.Before(*filters.StartTime) {
			continue
		}
		if filters.EndTime != nil && l.Timestamp.After(*filters.EndTime) {
			continue
		}
		all = append(all, l)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })

	total := int64(len(all))
	all = page(all, limit, offset)

	out := make([]*models.Log, len(all))
	for i := range all {
		out[i] = &all[i]
	}
	return out, total, nil
}

// ===== helpers =====

func insertionLess(at time.Time, aid uuid.UUID, bt time.Time, bid uuid.UUID) bool {
	if !at.Equal(bt) {
		return at.Before(bt)
	}
	return aid.String() < bid.String()
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

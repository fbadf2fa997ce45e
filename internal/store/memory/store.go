// Package memory implements every store contract in process. It backs
// the test suites and DSN-less boots; the Postgres store is the
// production twin. One mutex serializes all mutations, which trivially
// satisfies the per-record transition ordering and the mutation+audit
// atomicity the workflow requires.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"pressdesk.org/internal/audit"
	"pressdesk.org/internal/auth"
	"pressdesk.org/internal/obs"
	"pressdesk.org/internal/workflow"
)

// Store holds all state. The zero value is not usable; call New.
type Store struct {
	mu sync.Mutex

	users map[int64]*auth.User
	roles map[int64]*auth.Role
	perms map[string]auth.Permission
	// grants is role id → permission name set.
	grants map[int64]map[string]struct{}

	contents   map[int64]*workflow.Content
	approvals  map[int64][]workflow.ApprovalRecord
	categories map[int64]*workflow.Category
	coops      map[int64]*workflow.Cooperation

	trail []audit.Entry

	userSeq     int64
	roleSeq     int64
	permSeq     int64
	contentSeq  int64
	approvalSeq int64
	categorySeq int64
	coopSeq     int64
	auditSeq    int64
}

var (
	_ auth.Store     = (*Store)(nil)
	_ workflow.Store = (*Store)(nil)
	_ audit.Log      = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:      make(map[int64]*auth.User),
		roles:      make(map[int64]*auth.Role),
		perms:      make(map[string]auth.Permission),
		grants:     make(map[int64]map[string]struct{}),
		contents:   make(map[int64]*workflow.Content),
		approvals:  make(map[int64][]workflow.ApprovalRecord),
		categories: make(map[int64]*workflow.Category),
		coops:      make(map[int64]*workflow.Cooperation),
	}
}

// SeedRBAC loads the same role and grant reference data the SQL seeds
// install: user < staff < supervisor < admin.
func (s *Store) SeedRBAC() {
	s.mu.Lock()
	defer s.mu.Unlock()

	addRole := func(name string) int64 {
		s.roleSeq++
		s.roles[s.roleSeq] = &auth.Role{ID: s.roleSeq, Name: name}
		return s.roleSeq
	}
	userRole := addRole("user")
	staffRole := addRole("staff")
	supervisorRole := addRole("supervisor")
	adminRole := addRole("admin")

	for _, name := range auth.BuiltinPermissions {
		s.ensurePermLocked(name)
	}

	grant := func(roleID int64, names ...string) {
		set, ok := s.grants[roleID]
		if !ok {
			set = make(map[string]struct{})
			s.grants[roleID] = set
		}
		for _, n := range names {
			set[n] = struct{}{}
		}
	}
	grant(userRole, auth.PermContentCreate, auth.PermSubmitCoop)
	grant(staffRole, auth.PermContentCreate, auth.PermSubmitCoop,
		auth.PermContentApprove, auth.PermVerifyCoop, auth.PermCategoryCreate, auth.PermUserRead)
	grant(supervisorRole, auth.PermContentCreate, auth.PermSubmitCoop,
		auth.PermContentApprove, auth.PermVerifyCoop, auth.PermCategoryCreate, auth.PermUserRead,
		auth.PermContentPublish, auth.PermApproveCoop, auth.PermAuditRead)
	grant(adminRole, auth.BuiltinPermissions...)
}

func (s *Store) ensurePermLocked(name string) {
	if _, ok := s.perms[name]; ok {
		return
	}
	s.permSeq++
	s.perms[name] = auth.Permission{ID: s.permSeq, Name: name}
}

// appendLocked assigns the next monotonic id and records the entry.
// Callers hold s.mu, which is what makes "mutation plus trail entry"
// one observable unit here.
func (s *Store) appendLocked(entry *audit.Entry) {
	s.auditSeq++
	entry.ID = s.auditSeq
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Details == nil {
		entry.Details = map[string]any{}
	}
	s.trail = append(s.trail, *entry)
	obs.ObserveAudit(entry.Action)
}

// Append implements audit.Log for standalone events (logins, denials).
func (s *Store) Append(ctx context.Context, entry *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(entry)
	return nil
}

// ListAfter implements the watermark read: strictly ascending ids
// greater than afterID.
func (s *Store) ListAfter(ctx context.Context, afterID int64, limit int) ([]audit.Entry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Entry
	for _, e := range s.trail {
		if e.ID <= afterID {
			continue
		}
		// Details is a map; hand out a copy so callers cannot reach
		// back into the trail.
		if e.Details != nil {
			details := make(map[string]any, len(e.Details))
			for k, v := range e.Details {
				details[k] = v
			}
			e.Details = details
		}
		out = append(out, e)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// --- auth.Store -----------------------------------------------------------

func (s *Store) Users(context.Context) auth.UserStore             { return userStore{s} }
func (s *Store) Roles(context.Context) auth.RoleStore             { return roleStore{s} }
func (s *Store) Permissions(context.Context) auth.PermissionStore { return permissionStore{s} }

type userStore struct{ s *Store }

func (u userStore) Create(ctx context.Context, user *auth.User, entry *audit.Entry) error {
	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return auth.ErrConflict
		}
	}
	if _, ok := s.roles[user.RoleID]; !ok {
		return auth.ErrNotFound
	}
	s.userSeq++
	user.ID = s.userSeq
	user.CreatedAt = time.Now().UTC()
	clone := *user
	s.users[user.ID] = &clone

	if entry != nil {
		entry.UserID = audit.Ref(user.ID)
		entry.RecordID = audit.Ref(user.ID)
		s.appendLocked(entry)
	}
	return nil
}

func (u userStore) Find(ctx context.Context, id int64) (*auth.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	user, ok := u.s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (u userStore) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	username = strings.ToLower(username)
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, user := range u.s.users {
		if user.Username == username {
			clone := *user
			return &clone, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (u userStore) List(ctx context.Context) ([]*auth.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	out := make([]*auth.User, 0, len(u.s.users))
	for _, user := range u.s.users {
		clone := *user
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type roleStore struct{ s *Store }

func (r roleStore) Find(ctx context.Context, id int64) (*auth.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.roles[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	clone := *role
	return &clone, nil
}

func (r roleStore) FindByName(ctx context.Context, name string) (*auth.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, role := range r.s.roles {
		if role.Name == name {
			clone := *role
			return &clone, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r roleStore) List(ctx context.Context) ([]*auth.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*auth.Role, 0, len(r.s.roles))
	for _, role := range r.s.roles {
		clone := *role
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type permissionStore struct{ s *Store }

func (p permissionStore) Ensure(ctx context.Context, names []string) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	for _, name := range names {
		p.s.ensurePermLocked(name)
	}
	return nil
}

func (p permissionStore) List(ctx context.Context) ([]auth.Permission, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	out := make([]auth.Permission, 0, len(p.s.perms))
	for _, perm := range p.s.perms {
		out = append(out, perm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p permissionStore) Grants(ctx context.Context) ([]auth.RoleGrant, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	var out []auth.RoleGrant
	for roleID, set := range p.s.grants {
		for name := range set {
			out = append(out, auth.RoleGrant{RoleID: roleID, Permission: name})
		}
	}
	return out, nil
}

func (p permissionStore) SetForRole(ctx context.Context, roleID int64, names []string) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if _, ok := p.s.roles[roleID]; !ok {
		return auth.ErrNotFound
	}
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		p.s.ensurePermLocked(name)
		set[name] = struct{}{}
	}
	p.s.grants[roleID] = set
	return nil
}

// --- workflow.Store -------------------------------------------------------

func (s *Store) Contents(context.Context) workflow.ContentStore         { return contentStore{s} }
func (s *Store) Categories(context.Context) workflow.CategoryStore      { return categoryStore{s} }
func (s *Store) Cooperations(context.Context) workflow.CooperationStore { return coopStore{s} }

type contentStore struct{ s *Store }

func (c contentStore) Create(ctx context.Context, item *workflow.Content, entry *audit.Entry) error {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contentSeq++
	item.ID = s.contentSeq
	item.Status = workflow.ContentDraft
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	clone := *item
	s.contents[item.ID] = &clone

	if entry != nil {
		entry.RecordID = audit.Ref(item.ID)
		if entry.Details == nil {
			entry.Details = map[string]any{}
		}
		entry.Details["record_id"] = item.ID
		s.appendLocked(entry)
	}
	return nil
}

func (c contentStore) Update(ctx context.Context, item *workflow.Content, entry *audit.Entry) error {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.contents[item.ID]
	if !ok {
		return workflow.ErrNotFound
	}
	// Editability is decided here, not by the caller: a snapshot read
	// outside the lock could race a concurrent submit.
	if stored.Status != workflow.ContentDraft {
		return workflow.ErrInvalidTransition
	}
	stored.Title = item.Title
	stored.Excerpt = item.Excerpt
	stored.Body = item.Body
	stored.CategoryID = item.CategoryID
	stored.UpdatedAt = time.Now().UTC()
	*item = *stored

	if entry != nil {
		entry.RecordID = audit.Ref(item.ID)
		s.appendLocked(entry)
	}
	return nil
}

func (c contentStore) Find(ctx context.Context, id int64) (*workflow.Content, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	item, ok := c.s.contents[id]
	if !ok {
		return nil, workflow.ErrNotFound
	}
	clone := *item
	return &clone, nil
}

func (c contentStore) List(ctx context.Context) ([]*workflow.Content, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	out := make([]*workflow.Content, 0, len(c.s.contents))
	for _, item := range c.s.contents {
		clone := *item
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c contentStore) Transition(ctx context.Context, id int64, actor workflow.Actor, action workflow.Action, notes string) (*workflow.Content, error) {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.contents[id]
	if !ok {
		return nil, workflow.ErrNotFound
	}
	stages := 0
	for _, rec := range s.approvals[id] {
		if rec.Action == "approve" {
			stages++
		}
	}
	decision, err := workflow.DecideContent(item, stages, actor, action, notes)
	if err != nil {
		return nil, err
	}

	item.Status = decision.Next
	item.UpdatedAt = time.Now().UTC()
	if decision.Approval != nil {
		s.approvalSeq++
		rec := *decision.Approval
		rec.ID = s.approvalSeq
		rec.CreatedAt = item.UpdatedAt
		s.approvals[id] = append(s.approvals[id], rec)
	}
	s.appendLocked(workflow.ContentAuditEntry(decision.AuditAction, actor, item, notes))

	clone := *item
	return &clone, nil
}

func (c contentStore) History(ctx context.Context, contentID int64) ([]workflow.ApprovalRecord, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if _, ok := c.s.contents[contentID]; !ok {
		return nil, workflow.ErrNotFound
	}
	recs := c.s.approvals[contentID]
	out := make([]workflow.ApprovalRecord, len(recs))
	copy(out, recs)
	return out, nil
}

type categoryStore struct{ s *Store }

func (c categoryStore) Create(ctx context.Context, cat *workflow.Category, entry *audit.Entry) error {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categorySeq++
	cat.ID = s.categorySeq
	cat.CreatedAt = time.Now().UTC()
	clone := *cat
	s.categories[cat.ID] = &clone

	if entry != nil {
		entry.RecordID = audit.Ref(cat.ID)
		s.appendLocked(entry)
	}
	return nil
}

func (c categoryStore) List(ctx context.Context) ([]*workflow.Category, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	out := make([]*workflow.Category, 0, len(c.s.categories))
	for _, cat := range c.s.categories {
		clone := *cat
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type coopStore struct{ s *Store }

func (c coopStore) Create(ctx context.Context, coop *workflow.Cooperation, entry *audit.Entry) error {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coopSeq++
	coop.ID = s.coopSeq
	coop.Status = workflow.CoopSubmitted
	coop.CreatedAt = time.Now().UTC()
	clone := *coop
	s.coops[coop.ID] = &clone

	if entry != nil {
		entry.RecordID = audit.Ref(coop.ID)
		if entry.Details == nil {
			entry.Details = map[string]any{}
		}
		entry.Details["record_id"] = coop.ID
		s.appendLocked(entry)
	}
	return nil
}

func (c coopStore) Find(ctx context.Context, id int64) (*workflow.Cooperation, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	coop, ok := c.s.coops[id]
	if !ok {
		return nil, workflow.ErrNotFound
	}
	clone := *coop
	return &clone, nil
}

func (c coopStore) Transition(ctx context.Context, id int64, actor workflow.Actor, action workflow.Action) (*workflow.Cooperation, error) {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()

	coop, ok := s.coops[id]
	if !ok {
		return nil, workflow.ErrNotFound
	}
	decision, err := workflow.DecideCooperation(coop, action)
	if err != nil {
		return nil, err
	}
	coop.Status = decision.Next
	s.appendLocked(workflow.CooperationAuditEntry(decision.AuditAction, actor, coop))

	clone := *coop
	return &clone, nil
}

package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/maxnet-vpn/maxnet/internal/application/entitlement/addralloc"
	"github.com/maxnet-vpn/maxnet/internal/domain/entitlement"
	"github.com/maxnet-vpn/maxnet/internal/shared/logger"
)

func newTestLogger() logger.Interface {
	return logger.NewLoggerWithSlog(slog.New(slog.DiscardHandler))
}

// fakeEntitlementRepo is an in-memory Repository backed by a map.
type fakeEntitlementRepo struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*entitlement.Entitlement

	createErr error
	updateErr error
}

func newFakeEntitlementRepo() *fakeEntitlementRepo {
	return &fakeEntitlementRepo{nextID: 1, rows: map[uint]*entitlement.Entitlement{}}
}

func (r *fakeEntitlementRepo) Create(ctx context.Context, e *entitlement.Entitlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if err := e.SetID(r.nextID); err != nil {
		return err
	}
	r.nextID++
	r.rows[e.ID()] = e
	return nil
}

func (r *fakeEntitlementRepo) Update(ctx context.Context, e *entitlement.Entitlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.rows[e.ID()]; !ok {
		return entitlement.ErrEntitlementNotFound
	}
	r.rows[e.ID()] = e
	return nil
}

func (r *fakeEntitlementRepo) Delete(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return entitlement.ErrEntitlementNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *fakeEntitlementRepo) GetByID(ctx context.Context, id uint) (*entitlement.Entitlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.rows[id]
	if !ok {
		return nil, entitlement.ErrEntitlementNotFound
	}
	return e, nil
}

func (r *fakeEntitlementRepo) FindCurrentSubscription(ctx context.Context, externalUserID, periodID, channelID int64) (*entitlement.Entitlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.sorted() {
		if e.ExternalUserID() == externalUserID &&
			e.PeriodID() == periodID &&
			e.ChannelID() == channelID &&
			e.IsCurrent() {
			return e, nil
		}
	}
	return nil, entitlement.ErrEntitlementNotFound
}

func (r *fakeEntitlementRepo) FindLatestDonation(ctx context.Context, externalUserID, externalSubscriptionID int64) (*entitlement.Entitlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.sorted()
	for i := len(list) - 1; i >= 0; i-- {
		e := list[i]
		if e.ExternalUserID() == externalUserID &&
			e.ExternalSubscriptionID() == externalSubscriptionID {
			return e, nil
		}
	}
	return nil, entitlement.ErrEntitlementNotFound
}

func (r *fakeEntitlementRepo) FindActiveByScope(ctx context.Context, scope entitlement.Scope) ([]*entitlement.Entitlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entitlement.Entitlement
	for _, e := range r.sorted() {
		if e.Active() && e.Scope() == scope {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEntitlementRepo) FindCurrentBySubject(ctx context.Context, subjectID int64) ([]*entitlement.Entitlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entitlement.Entitlement
	for _, e := range r.sorted() {
		if e.SubjectID() == subjectID && e.IsCurrent() {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEntitlementRepo) FindLatestCurrentBySubject(ctx context.Context, subjectID int64) (*entitlement.Entitlement, error) {
	list, _ := r.FindCurrentBySubject(ctx, subjectID)
	var latest *entitlement.Entitlement
	for _, e := range list {
		if latest == nil || e.ExpiresAt().After(latest.ExpiresAt()) {
			latest = e
		}
	}
	if latest == nil {
		return nil, entitlement.ErrEntitlementNotFound
	}
	return latest, nil
}

func (r *fakeEntitlementRepo) FindExpired(ctx context.Context) ([]*entitlement.Entitlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entitlement.Entitlement
	for _, e := range r.sorted() {
		if e.Active() && e.IsExpired() {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEntitlementRepo) FindExpiringBetween(ctx context.Context, from, to time.Time) ([]*entitlement.Entitlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entitlement.Entitlement
	for _, e := range r.sorted() {
		if e.Active() && e.ExpiresAt().After(from) && !e.ExpiresAt().After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEntitlementRepo) ListRecent(ctx context.Context, limit int) ([]*entitlement.Entitlement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.sorted()
	if len(list) > limit {
		list = list[len(list)-limit:]
	}
	return list, nil
}

func (r *fakeEntitlementRepo) CountActiveByAddress(ctx context.Context, address string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, e := range r.rows {
		if e.Active() && e.Address() == address {
			n++
		}
	}
	return n, nil
}

func (r *fakeEntitlementRepo) sorted() []*entitlement.Entitlement {
	ids := make([]int, 0, len(r.rows))
	for id := range r.rows {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	out := make([]*entitlement.Entitlement, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.rows[uint(id)])
	}
	return out
}

// fakeAllocator hands out addresses from a fixed slice.
type fakeAllocator struct {
	mu         sync.Mutex
	free       []string
	allocated  map[string]bool
	claimErr   error
	releaseErr error
}

func newFakeAllocator(addresses ...string) *fakeAllocator {
	return &fakeAllocator{free: addresses, allocated: map[string]bool{}}
}

func (a *fakeAllocator) Allocate(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.free) == 0 {
		return "", entitlement.ErrPoolExhausted
	}
	addr := a.free[0]
	a.free = a.free[1:]
	a.allocated[addr] = true
	return addr, nil
}

func (a *fakeAllocator) Claim(ctx context.Context, address string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.claimErr != nil {
		return a.claimErr
	}
	if a.allocated[address] {
		return entitlement.ErrAddressUnavailable
	}
	for i, addr := range a.free {
		if addr == address {
			a.free = append(a.free[:i], a.free[i+1:]...)
			break
		}
	}
	a.allocated[address] = true
	return nil
}

func (a *fakeAllocator) Release(ctx context.Context, address string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.releaseErr != nil {
		return a.releaseErr
	}
	if !a.allocated[address] {
		return nil
	}
	delete(a.allocated, address)
	a.free = append(a.free, address)
	return nil
}

func (a *fakeAllocator) Stats(ctx context.Context) (*addralloc.PoolStats, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := int64(len(a.free) + len(a.allocated))
	return &addralloc.PoolStats{
		Total:     total,
		Allocated: int64(len(a.allocated)),
		Free:      int64(len(a.free)),
	}, nil
}

func (a *fakeAllocator) isAllocated(address string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocated[address]
}

// fakeKeyGen generates deterministic key pairs.
type fakeKeyGen struct {
	mu sync.Mutex
	n  int
}

func (g *fakeKeyGen) Generate() (entitlement.KeyPair, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return entitlement.KeyPair{
		PrivateKey: fmt.Sprintf("priv-%d", g.n),
		PublicKey:  fmt.Sprintf("pub-%d", g.n),
	}, nil
}

// fakePeers records installed peers and can be told to fail.
type fakePeers struct {
	mu         sync.Mutex
	installed  map[string]string // publicKey -> allowedAddress
	installs   int
	removals   []string
	installErr error
	removeErr  error
}

func newFakePeers() *fakePeers {
	return &fakePeers{installed: map[string]string{}}
}

func (p *fakePeers) InstallPeer(ctx context.Context, publicKey, allowedAddress, ownerLabel string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.installErr != nil {
		return p.installErr
	}
	p.installed[publicKey] = allowedAddress
	p.installs++
	return nil
}

func (p *fakePeers) RemovePeer(ctx context.Context, publicKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removals = append(p.removals, publicKey)
	if p.removeErr != nil {
		return p.removeErr
	}
	delete(p.installed, publicKey)
	return nil
}

func (p *fakePeers) removalsFor(publicKey string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, k := range p.removals {
		if k == publicKey {
			n++
		}
	}
	return n
}

// fakeRenderer renders a recognizable artifact.
type fakeRenderer struct{}

func (fakeRenderer) Build(privateKey, address string) string {
	return "config:" + privateKey + ":" + address
}

func (fakeRenderer) AllowedAddress(address string) string {
	return address + "/32"
}

// fakeLocker is an in-process Locker that tracks whether the lock is held.
type fakeLocker struct {
	mu      sync.Mutex
	stateMu sync.Mutex
	held    bool
}

func (l *fakeLocker) Acquire(ctx context.Context, name string) (func(), error) {
	l.mu.Lock()
	l.setHeld(true)
	return func() {
		l.setHeld(false)
		l.mu.Unlock()
	}, nil
}

func (l *fakeLocker) TryAcquire(ctx context.Context, name string) (func(), bool, error) {
	if l.mu.TryLock() {
		l.setHeld(true)
		return func() {
			l.setHeld(false)
			l.mu.Unlock()
		}, true, nil
	}
	return nil, false, nil
}

func (l *fakeLocker) setHeld(v bool) {
	l.stateMu.Lock()
	l.held = v
	l.stateMu.Unlock()
}

func (l *fakeLocker) isHeld() bool {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	return l.held
}

// fakeEventRegistry replicates the unique-insert idempotency gate.
type fakeEventRegistry struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeEventRegistry() *fakeEventRegistry {
	return &fakeEventRegistry{seen: map[string]bool{}}
}

func (r *fakeEventRegistry) Register(ctx context.Context, provider, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := provider + "/" + eventID
	if r.seen[key] {
		return entitlement.ErrDuplicateEvent
	}
	r.seen[key] = true
	return nil
}

// fakeNotifier records deliveries. onSend, when set, runs at the start of
// every notification call.
type fakeNotifier struct {
	mu          sync.Mutex
	credentials []string
	renewals    []int64
	cancelled   []int64
	expired     []int64
	expiring    []int64
	deliverErr  error
	onSend      func()
}

func (n *fakeNotifier) DeliverCredential(ctx context.Context, subjectID int64, configText string, expiresAt time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.onSend != nil {
		n.onSend()
	}
	if n.deliverErr != nil {
		return n.deliverErr
	}
	n.credentials = append(n.credentials, configText)
	return nil
}

func (n *fakeNotifier) NotifyRenewal(ctx context.Context, subjectID int64, expiresAt time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.onSend != nil {
		n.onSend()
	}
	n.renewals = append(n.renewals, subjectID)
	return nil
}

func (n *fakeNotifier) NotifyCancelled(ctx context.Context, subjectID int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, subjectID)
	return nil
}

func (n *fakeNotifier) NotifyExpired(ctx context.Context, subjectID int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expired = append(n.expired, subjectID)
	return nil
}

func (n *fakeNotifier) NotifyExpiring(ctx context.Context, subjectID int64, expiresAt time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.expiring = append(n.expiring, subjectID)
	return nil
}

// fakeTransactor runs fn against the same context and counts invocations.
type fakeTransactor struct {
	mu   sync.Mutex
	runs int
}

func (t *fakeTransactor) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	t.runs++
	t.mu.Unlock()
	return fn(ctx)
}

func (t *fakeTransactor) runCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs
}

// fakePromoRepo is an in-memory PromoCodeRepository keyed by code value.
type fakePromoRepo struct {
	mu          sync.Mutex
	nextID      uint
	codes       map[string]*entitlement.PromoCode
	redemptions map[uint]map[int64]int
	trail       int

	updateErr error
	recordErr error
}

func newFakePromoRepo() *fakePromoRepo {
	return &fakePromoRepo{
		nextID:      1,
		codes:       map[string]*entitlement.PromoCode{},
		redemptions: map[uint]map[int64]int{},
	}
}

func (r *fakePromoRepo) Create(ctx context.Context, p *entitlement.PromoCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.codes[p.Code()]; ok {
		return fmt.Errorf("duplicate promo code %s", p.Code())
	}
	if err := p.SetID(r.nextID); err != nil {
		return err
	}
	r.nextID++
	r.codes[p.Code()] = p
	return nil
}

func (r *fakePromoRepo) Update(ctx context.Context, p *entitlement.PromoCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.codes[p.Code()]; !ok {
		return entitlement.ErrPromoCodeNotFound
	}
	r.codes[p.Code()] = p
	return nil
}

func (r *fakePromoRepo) GetByCode(ctx context.Context, code string) (*entitlement.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.codes[code]
	if !ok {
		return nil, entitlement.ErrPromoCodeNotFound
	}
	return p, nil
}

func (r *fakePromoRepo) ListActive(ctx context.Context) ([]*entitlement.PromoCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entitlement.PromoCode
	for _, p := range r.codes {
		if p.Active() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() > out[j].ID() })
	return out, nil
}

func (r *fakePromoRepo) CountRedemptionsBySubject(ctx context.Context, promoCodeID uint, subjectID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.redemptions[promoCodeID][subjectID], nil
}

func (r *fakePromoRepo) RecordRedemption(ctx context.Context, promoCodeID uint, subjectID int64, entitlementID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recordErr != nil {
		return r.recordErr
	}
	if r.redemptions[promoCodeID] == nil {
		r.redemptions[promoCodeID] = map[int64]int{}
	}
	r.redemptions[promoCodeID][subjectID]++
	r.trail++
	return nil
}

func (r *fakePromoRepo) trailLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trail
}

// fakeReminderMarker marks each entitlement once.
type fakeReminderMarker struct {
	mu     sync.Mutex
	marked map[uint]bool
}

func newFakeReminderMarker() *fakeReminderMarker {
	return &fakeReminderMarker{marked: map[uint]bool{}}
}

func (m *fakeReminderMarker) TryMark(ctx context.Context, entitlementID uint, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.marked[entitlementID] {
		return false, nil
	}
	m.marked[entitlementID] = true
	return true, nil
}

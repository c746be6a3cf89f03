package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/voiceofrajkot/vor-api/models"
)

// Memory is a process-local Store. Selected with STORAGE_DRIVER=memory for local
// development and used by the handler tests. Records are copied in and out so callers
// never share mutable state with the store.
type Memory struct {
	mu       sync.RWMutex
	users    map[primitive.ObjectID]models.User
	events   map[primitive.ObjectID]models.Event
	bookings map[primitive.ObjectID]models.Booking
	posts    map[primitive.ObjectID]models.Post
}

func NewMemory() *Memory {
	return &Memory{
		users:    map[primitive.ObjectID]models.User{},
		events:   map[primitive.ObjectID]models.Event{},
		bookings: map[primitive.ObjectID]models.Booking{},
		posts:    map[primitive.ObjectID]models.Post{},
	}
}

func (m *Memory) Users() UserRepository       { return memUsers{m} }
func (m *Memory) Events() EventRepository     { return memEvents{m} }
func (m *Memory) Bookings() BookingRepository { return memBookings{m} }
func (m *Memory) Posts() PostRepository       { return memPosts{m} }

func (m *Memory) Close(context.Context) error { return nil }

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func paginate[T any](items []T, page, limit int) []T {
	if limit <= 0 {
		return items
	}
	start := Skip(page, limit)
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// ---------------- USERS ----------------

type memUsers struct{ m *Memory }

func (r memUsers) Create(_ context.Context, u *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range r.m.users {
		if existing.Email == u.Email {
			return fmt.Errorf("user %s: %w", u.Email, ErrDuplicate)
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	r.m.users[u.ID] = *u
	return nil
}

func (r memUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	u, ok := r.m.users[id]
	if !ok {
		return nil, fmt.Errorf("user: %w", ErrNotFound)
	}
	return &u, nil
}

func (r memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user: %w", ErrNotFound)
}

func (r memUsers) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	out := []models.User{}
	for _, id := range ids {
		if u, ok := r.m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r memUsers) filtered(f UserFilter) []models.User {
	out := []models.User{}
	for _, u := range r.m.users {
		if f.PerformersOnly && !u.IsPerformer {
			continue
		}
		out = append(out, u)
	}
	return out
}

func (r memUsers) List(_ context.Context, f UserFilter) ([]models.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	out := r.filtered(f)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memUsers) Save(_ context.Context, u *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.users[u.ID]; !ok {
		return fmt.Errorf("user %s: %w", u.ID.Hex(), ErrNotFound)
	}
	r.m.users[u.ID] = *u
	return nil
}

func (r memUsers) Count(_ context.Context, f UserFilter) (int64, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return int64(len(r.filtered(f))), nil
}

// ---------------- EVENTS ----------------

type memEvents struct{ m *Memory }

func (r memEvents) Create(_ context.Context, e *models.Event) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	r.m.events[e.ID] = *e
	return nil
}

func (r memEvents) FindByID(_ context.Context, id primitive.ObjectID) (*models.Event, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	e, ok := r.m.events[id]
	if !ok {
		return nil, fmt.Errorf("event: %w", ErrNotFound)
	}
	return &e, nil
}

func (r memEvents) filtered(f EventFilter) []models.Event {
	out := []models.Event{}
	for _, e := range r.m.events {
		if f.Query != "" && !containsFold(e.Name, f.Query) && !containsFold(e.Venue, f.Query) {
			continue
		}
		switch f.Window {
		case WindowUpcoming:
			if !e.DateTime.After(f.Now) {
				continue
			}
		case WindowPast:
			if e.DateTime.After(f.Now) {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

func (r memEvents) List(_ context.Context, f EventFilter) ([]models.Event, int64, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	out := r.filtered(f)
	sort.Slice(out, func(i, j int) bool {
		if f.Window == WindowUpcoming {
			return out[i].DateTime.Before(out[j].DateTime)
		}
		return out[i].DateTime.After(out[j].DateTime)
	})
	return paginate(out, f.Page, f.Limit), int64(len(out)), nil
}

func (r memEvents) ListByPerformer(_ context.Context, performerID primitive.ObjectID) ([]models.Event, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	out := []models.Event{}
	for _, e := range r.m.events {
		for _, p := range e.Performers {
			if p == performerID {
				out = append(out, e)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateTime.After(out[j].DateTime) })
	return out, nil
}

func (r memEvents) Save(_ context.Context, e *models.Event) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	existing, ok := r.m.events[e.ID]
	if !ok {
		return fmt.Errorf("event %s: %w", e.ID.Hex(), ErrNotFound)
	}
	if e.TotalSeats < existing.BookedSeats {
		return fmt.Errorf("event %s: total seats below booked seats: %w", e.ID.Hex(), ErrSoldOut)
	}
	updated := *e
	updated.BookedSeats = existing.BookedSeats
	updated.CreatedAt = existing.CreatedAt
	updated.CreatedBy = existing.CreatedBy
	r.m.events[e.ID] = updated
	return nil
}

func (r memEvents) Delete(_ context.Context, id primitive.ObjectID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.events[id]; !ok {
		return fmt.Errorf("event %s: %w", id.Hex(), ErrNotFound)
	}
	delete(r.m.events, id)
	return nil
}

func (r memEvents) ReserveSeats(_ context.Context, id primitive.ObjectID, n int) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	e, ok := r.m.events[id]
	if !ok {
		return fmt.Errorf("event %s: %w", id.Hex(), ErrNotFound)
	}
	if e.BookedSeats+n > e.TotalSeats {
		return fmt.Errorf("event %s: %w", id.Hex(), ErrSoldOut)
	}
	e.BookedSeats += n
	r.m.events[id] = e
	return nil
}

func (r memEvents) ReleaseSeats(_ context.Context, id primitive.ObjectID, n int) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	e, ok := r.m.events[id]
	if !ok {
		return fmt.Errorf("event %s: %w", id.Hex(), ErrNotFound)
	}
	if e.BookedSeats < n {
		return fmt.Errorf("event %s: %w", id.Hex(), ErrSeatUnderflow)
	}
	e.BookedSeats -= n
	r.m.events[id] = e
	return nil
}

func (r memEvents) Count(_ context.Context, f EventFilter) (int64, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return int64(len(r.filtered(f))), nil
}

// ---------------- BOOKINGS ----------------

type memBookings struct{ m *Memory }

func (r memBookings) Create(_ context.Context, b *models.Booking) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	b.Active = b.PaymentStatus.Active()
	if b.Active {
		for _, other := range r.m.bookings {
			if other.Active && other.UserID == b.UserID && other.EventID == b.EventID {
				return fmt.Errorf("booking for user %s: %w", b.UserID.Hex(), ErrDuplicate)
			}
		}
	}
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	b.MembersName = append([]string(nil), b.MembersName...)
	r.m.bookings[b.ID] = *b
	return nil
}

func (r memBookings) FindByID(_ context.Context, id primitive.ObjectID) (*models.Booking, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	b, ok := r.m.bookings[id]
	if !ok {
		return nil, fmt.Errorf("booking: %w", ErrNotFound)
	}
	return &b, nil
}

func (r memBookings) FindActive(_ context.Context, userID, eventID primitive.ObjectID) (*models.Booking, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	for _, b := range r.m.bookings {
		if b.Active && b.UserID == userID && b.EventID == eventID {
			return &b, nil
		}
	}
	return nil, fmt.Errorf("booking: %w", ErrNotFound)
}

func (r memBookings) list(keep func(models.Booking) bool) []models.Booking {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	out := []models.Booking{}
	for _, b := range r.m.bookings {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r memBookings) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Booking, error) {
	return r.list(func(b models.Booking) bool { return b.UserID == userID }), nil
}

func (r memBookings) ListByEvent(_ context.Context, eventID primitive.ObjectID) ([]models.Booking, error) {
	return r.list(func(b models.Booking) bool { return b.EventID == eventID }), nil
}

func (r memBookings) ListAll(_ context.Context) ([]models.Booking, error) {
	return r.list(func(models.Booking) bool { return true }), nil
}

func (r memBookings) updatePending(id primitive.ObjectID, apply func(*models.Booking)) (*models.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	b, ok := r.m.bookings[id]
	if !ok {
		return nil, fmt.Errorf("booking %s: %w", id.Hex(), ErrNotFound)
	}
	if b.PaymentStatus != models.PaymentPending {
		return nil, fmt.Errorf("booking %s: %w", id.Hex(), ErrStatusConflict)
	}
	apply(&b)
	r.m.bookings[id] = b
	return &b, nil
}

func (r memBookings) SetScreenshot(_ context.Context, id primitive.ObjectID, url string) (*models.Booking, error) {
	return r.updatePending(id, func(b *models.Booking) {
		b.PaymentScreenshot = url
		b.UpdatedAt = timeNow()
	})
}

func (r memBookings) Decide(_ context.Context, id primitive.ObjectID, d models.Decision) (*models.Booking, error) {
	if !models.PaymentPending.CanTransition(d.Status) {
		return nil, fmt.Errorf("booking %s: cannot move to %q: %w", id.Hex(), d.Status, ErrStatusConflict)
	}
	return r.updatePending(id, func(b *models.Booking) {
		at := d.At
		b.PaymentStatus = d.Status
		b.Active = d.Status.Active()
		b.UpdatedAt = at
		if d.Status == models.PaymentVerified {
			b.TicketID = d.TicketID
			b.VerifiedAt = &at
		} else {
			b.RejectionReason = d.Reason
			b.RejectedAt = &at
		}
	})
}

func (r memBookings) CheckIn(_ context.Context, id primitive.ObjectID, at time.Time) (*models.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	b, ok := r.m.bookings[id]
	if !ok {
		return nil, fmt.Errorf("booking %s: %w", id.Hex(), ErrNotFound)
	}
	if b.PaymentStatus != models.PaymentVerified || b.CheckedInAt != nil {
		return nil, fmt.Errorf("booking %s: %w", id.Hex(), ErrStatusConflict)
	}
	b.CheckedInAt = &at
	b.UpdatedAt = at
	r.m.bookings[id] = b
	return &b, nil
}

// ---------------- POSTS ----------------

type memPosts struct{ m *Memory }

func (r memPosts) Create(_ context.Context, p *models.Post) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	stored := *p
	stored.Likes = append([]primitive.ObjectID{}, p.Likes...)
	r.m.posts[p.ID] = stored
	return nil
}

func (r memPosts) FindByID(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	p, ok := r.m.posts[id]
	if !ok {
		return nil, fmt.Errorf("post: %w", ErrNotFound)
	}
	p.Likes = append([]primitive.ObjectID{}, p.Likes...)
	return &p, nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (r memPosts) List(_ context.Context, f PostFilter) ([]models.Post, int64, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	out := []models.Post{}
	for _, p := range r.m.posts {
		if f.Tag != "" && !hasTag(p.Tags, f.Tag) {
			continue
		}
		if !f.AuthorID.IsZero() && p.AuthorID != f.AuthorID {
			continue
		}
		if f.Query != "" && !containsFold(p.Heading, f.Query) && !containsFold(p.Content, f.Query) {
			continue
		}
		p.Likes = append([]primitive.ObjectID{}, p.Likes...)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, f.Page, f.Limit), int64(len(out)), nil
}

func (r memPosts) ToggleLike(_ context.Context, postID, userID primitive.ObjectID) (*models.Post, bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	p, ok := r.m.posts[postID]
	if !ok {
		return nil, false, fmt.Errorf("post %s: %w", postID.Hex(), ErrNotFound)
	}

	likes := make([]primitive.ObjectID, 0, len(p.Likes)+1)
	liked := true
	for _, id := range p.Likes {
		if id == userID {
			liked = false
			continue
		}
		likes = append(likes, id)
	}
	if liked {
		likes = append(likes, userID)
	}
	p.Likes = likes
	r.m.posts[postID] = p

	p.Likes = append([]primitive.ObjectID{}, likes...)
	return &p, liked, nil
}

func (r memPosts) Delete(_ context.Context, id primitive.ObjectID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.posts[id]; !ok {
		return fmt.Errorf("post %s: %w", id.Hex(), ErrNotFound)
	}
	delete(r.m.posts, id)
	return nil
}

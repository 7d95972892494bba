// memory based implementation for testing purposes
package memory

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/cyp0633/recuredit/storage"
	"github.com/emersion/go-ical"
)

// Store implements storage.Storage interface using an in-memory map
type Store struct {
	mu      sync.RWMutex
	objects map[string]*storage.CalendarObject // key: userID/objectID
	now     func() time.Time
}

// New creates a new in-memory storage
func New() *Store {
	return &Store{
		objects: make(map[string]*storage.CalendarObject),
		now:     time.Now,
	}
}

func (s *Store) objectKey(userID, objectID string) string {
	return fmt.Sprintf("%s/%s", userID, objectID)
}

func generateETag(data []byte) string {
	hash := sha1.Sum(data)
	return `"` + hex.EncodeToString(hash[:]) + `"`
}

// encodeComponent renders a component inside a minimal VCALENDAR
func encodeComponent(comp *ical.Component) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//recuredit//memory//EN")
	cal.Children = append(cal.Children, comp)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cloneComponent(comp *ical.Component) *ical.Component {
	if comp == nil {
		return nil
	}
	out := ical.NewComponent(comp.Name)
	for name, props := range comp.Props {
		for _, p := range props {
			np := ical.NewProp(p.Name)
			np.Value = p.Value
			for k, v := range p.Params {
				np.Params[k] = append([]string(nil), v...)
			}
			out.Props[name] = append(out.Props[name], *np)
		}
	}
	for _, child := range comp.Children {
		out.Children = append(out.Children, cloneComponent(child))
	}
	return out
}

func cloneObject(obj *storage.CalendarObject) *storage.CalendarObject {
	cp := *obj
	cp.Component = cloneComponent(obj.Component)
	return &cp
}

// PutObject creates or replaces an object and returns its ETag
func (s *Store) PutObject(_ context.Context, obj *storage.CalendarObject) (string, error) {
	stored, err := s.prepare(obj)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[s.objectKey(obj.UserID, obj.ID)] = stored

	return stored.ETag, nil
}

// prepare validates obj and returns the copy to store with its new ETag
func (s *Store) prepare(obj *storage.CalendarObject) (*storage.CalendarObject, error) {
	if obj == nil || obj.UserID == "" || obj.ID == "" || obj.Component == nil {
		return nil, &storage.Error{
			Type:    storage.ErrInvalidInput,
			Message: "object requires user ID, ID and component",
		}
	}

	data, err := encodeComponent(obj.Component)
	if err != nil {
		return nil, &storage.Error{
			Type:    storage.ErrInvalidInput,
			Message: "failed to encode component",
			Err:     err,
		}
	}

	stored := cloneObject(obj)
	stored.ETag = generateETag(data)
	stored.Modified = s.now()
	return stored, nil
}

func (s *Store) GetObject(_ context.Context, userID, objectID string) (*storage.CalendarObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[s.objectKey(userID, objectID)]
	if !ok {
		return nil, &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "object not found",
		}
	}

	return cloneObject(obj), nil
}

// UpdateObject replaces an existing object. When obj.ETag is set the stored
// object must still carry that ETag.
func (s *Store) UpdateObject(_ context.Context, obj *storage.CalendarObject) (string, error) {
	if obj == nil {
		return "", &storage.Error{
			Type:    storage.ErrInvalidInput,
			Message: "object is nil",
		}
	}

	stored, err := s.prepare(obj)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.objectKey(obj.UserID, obj.ID)
	current, ok := s.objects[key]
	if !ok {
		return "", &storage.Error{
			Type:    storage.ErrNotFound,
			Message: "object not found",
		}
	}
	if obj.ETag != "" && obj.ETag != current.ETag {
		return "", &storage.Error{
			Type:    storage.ErrPreconditionFailed,
			Message: fmt.Sprintf("object changed: have %s, stored %s", obj.ETag, current.ETag),
		}
	}

	s.objects[key] = stored
	return stored.ETag, nil
}

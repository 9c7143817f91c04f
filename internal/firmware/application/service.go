package application

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"restaurant-ops/internal/audit"
	"restaurant-ops/internal/auth"
	equipment "restaurant-ops/internal/equipment/domain"
	"restaurant-ops/internal/eventing"
	firmware "restaurant-ops/internal/firmware/domain"
	"restaurant-ops/internal/gateway"
	"restaurant-ops/internal/observability/metrics"
)

var (
	// ErrInvalidRequest indicates malformed issue input.
	ErrInvalidRequest = errors.New("firmware: invalid update request")
	// ErrUnknownEquipment is returned for an unregistered device.
	ErrUnknownEquipment = errors.New("firmware: unknown equipment")
)

// Dispatcher relays an update command to the on-site gateway.
type Dispatcher interface {
	SendFirmwareUpdate(ctx context.Context, equipmentID, version string, payload json.RawMessage) (gateway.UpdateResult, error)
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// IssueRequest is firmware update input.
type IssueRequest struct {
	EquipmentID    string          `json:"equipment_id"`
	Version        string          `json:"version"`
	Payload        json.RawMessage `json:"payload"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// Service issues firmware updates with idempotent retries.
type Service struct {
	updates        firmware.UpdateRepository
	registry       equipment.EquipmentRepository
	dispatcher     Dispatcher
	auditLog       audit.Logger
	bus            *eventing.Bus
	logger         *log.Logger
	clock          Clock
	idempotencyTTL time.Duration
}

// Option customizes the service.
type Option func(*Service)

// WithClock assigns a clock.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

// WithBus assigns an event bus.
func WithBus(bus *eventing.Bus) Option {
	return func(s *Service) {
		s.bus = bus
	}
}

// WithAudit assigns an audit logger.
func WithAudit(auditLog audit.Logger) Option {
	return func(s *Service) {
		s.auditLog = auditLog
	}
}

// NewService constructs a firmware service.
func NewService(updates firmware.UpdateRepository, registry equipment.EquipmentRepository, dispatcher Dispatcher, logger *log.Logger, opts ...Option) (*Service, error) {
	if updates == nil {
		return nil, errors.New("firmware: nil update repo")
	}
	if registry == nil {
		return nil, errors.New("firmware: nil equipment repo")
	}
	if dispatcher == nil {
		return nil, errors.New("firmware: nil dispatcher")
	}
	if logger == nil {
		logger = log.Default()
	}
	service := &Service{
		updates:        updates,
		registry:       registry,
		dispatcher:     dispatcher,
		logger:         logger,
		clock:          systemClock{},
		idempotencyTTL: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Issue creates and dispatches a firmware update. A repeated request
// with the same idempotency key inside the TTL returns the original
// update without re-dispatching.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*firmware.Update, error) {
	req.EquipmentID = strings.TrimSpace(req.EquipmentID)
	req.Version = strings.TrimSpace(req.Version)
	if req.EquipmentID == "" || req.Version == "" {
		return nil, ErrInvalidRequest
	}
	if len(req.Payload) > 0 && !json.Valid(req.Payload) {
		return nil, ErrInvalidRequest
	}

	device, err := s.registry.Get(ctx, req.EquipmentID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, ErrUnknownEquipment
	}
	tenantID := auth.TenantIDFromContext(ctx)
	if tenantID != "" && device.TenantID != tenantID {
		return nil, auth.ErrTenantMismatch
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = buildIdempotencyKey(device.TenantID, req.EquipmentID, req.Version, req.Payload)
	}

	now := s.clock.Now().UTC()
	existing, err := s.updates.FindByIdempotencyKey(ctx, device.TenantID, key, now.Add(-s.idempotencyTTL))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	update := &firmware.Update{
		UpdateID:       "fwu-" + buildShortID(device.TenantID+req.EquipmentID+req.Version+now.Format(time.RFC3339Nano)),
		TenantID:       device.TenantID,
		RestaurantID:   device.RestaurantID,
		EquipmentID:    device.ID,
		Version:        req.Version,
		Payload:        req.Payload,
		IdempotencyKey: key,
		Status:         firmware.StatusCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.updates.Create(ctx, update); err != nil {
		return nil, err
	}
	metrics.IncFirmwareIssued()
	s.auditIssue(ctx, update, now)

	result, err := s.dispatcher.SendFirmwareUpdate(ctx, update.EquipmentID, update.Version, update.Payload)
	if err != nil {
		s.logger.Printf("firmware dispatch failed: update=%s equipment=%s err=%v", update.UpdateID, update.EquipmentID, err)
		s.transition(ctx, update, firmware.StatusFailed, err.Error())
		return update, nil
	}
	switch result.Status {
	case firmware.StatusAcked:
		s.transition(ctx, update, firmware.StatusAcked, "")
	case firmware.StatusFailed:
		s.transition(ctx, update, firmware.StatusFailed, result.Error)
	default:
		s.transition(ctx, update, firmware.StatusSent, "")
	}
	return update, nil
}

// HandleResult records an asynchronous gateway callback.
func (s *Service) HandleResult(ctx context.Context, updateID, status, detail string) error {
	switch status {
	case firmware.StatusAcked, firmware.StatusFailed:
	default:
		return ErrInvalidRequest
	}
	now := s.clock.Now().UTC()
	if err := s.updates.UpdateStatus(ctx, updateID, status, detail, now); err != nil {
		return err
	}
	metrics.IncFirmwareResult(status)
	if s.bus != nil {
		s.bus.Publish(eventing.TopicFirmwareResult, map[string]string{"update_id": updateID, "status": status})
	}
	return nil
}

// ListByEquipment returns updates for one device.
func (s *Service) ListByEquipment(ctx context.Context, equipmentID string, limit int) ([]firmware.Update, error) {
	if equipmentID == "" {
		return nil, ErrInvalidRequest
	}
	return s.updates.ListByEquipment(ctx, equipmentID, limit)
}

// ListByRestaurant returns updates for one restaurant.
func (s *Service) ListByRestaurant(ctx context.Context, restaurantID string, limit int) ([]firmware.Update, error) {
	if restaurantID == "" {
		return nil, ErrInvalidRequest
	}
	return s.updates.ListByRestaurant(ctx, restaurantID, limit)
}

// MarkTimeouts flips sent updates older than the cutoff to timeout.
func (s *Service) MarkTimeouts(ctx context.Context, before time.Time) (int, error) {
	count, err := s.updates.MarkTimeoutBefore(ctx, before)
	if err != nil {
		return count, err
	}
	metrics.AddFirmwareTimeouts(count)
	return count, nil
}

func (s *Service) transition(ctx context.Context, update *firmware.Update, status, detail string) {
	now := s.clock.Now().UTC()
	update.Status = status
	update.Detail = detail
	update.UpdatedAt = now
	if err := s.updates.UpdateStatus(ctx, update.UpdateID, status, detail, now); err != nil {
		s.logger.Printf("firmware status update failed: update=%s status=%s err=%v", update.UpdateID, status, err)
		return
	}
	if status != firmware.StatusSent {
		metrics.IncFirmwareResult(status)
	}
	if s.bus != nil {
		s.bus.Publish(eventing.TopicFirmwareResult, map[string]string{"update_id": update.UpdateID, "status": status})
	}
}

func (s *Service) auditIssue(ctx context.Context, update *firmware.Update, now time.Time) {
	if s.auditLog == nil {
		return
	}
	meta, _ := json.Marshal(map[string]string{
		"equipment_id": update.EquipmentID,
		"version":      update.Version,
	})
	_ = s.auditLog.Log(ctx, audit.Entry{
		TenantID:     update.TenantID,
		Actor:        auth.SubjectFromContext(ctx),
		Role:         string(auth.RoleFromContext(ctx)),
		Action:       "firmware.issue",
		ResourceType: "firmware_update",
		ResourceID:   update.UpdateID,
		RestaurantID: update.RestaurantID,
		Metadata:     meta,
		CreatedAt:    now,
	})
}

func buildIdempotencyKey(tenantID, equipmentID, version string, payload json.RawMessage) string {
	hash := sha1.Sum([]byte(tenantID + "|" + equipmentID + "|" + version + "|" + string(payload)))
	return hex.EncodeToString(hash[:])
}

func buildShortID(input string) string {
	sum := sha1.Sum([]byte(input))
	return hex.EncodeToString(sum[:8])
}

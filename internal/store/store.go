package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"machine-fleet-backend/internal/model"
)

var tracer = otel.Tracer("machine-fleet-backend/internal/store")

// Store defines the interface for all database operations.
type Store interface {
	ListMachines(ctx context.Context, ownerID string) ([]model.Machine, error)
	GetMachine(ctx context.Context, id string) (*model.Machine, error)
	SaveMachine(ctx context.Context, m *model.Machine) error
	DeleteMachine(ctx context.Context, id string) error

	ListComponents(ctx context.Context, ownerID string) ([]model.Component, error)
	GetComponent(ctx context.Context, id string) (*model.Component, error)
	SaveComponent(ctx context.Context, c *model.Component) error

	DueSchedules(ctx context.Context, w Window) ([]DueSchedule, error)
	MarkReminded(ctx context.Context, scheduleIDs []string, at time.Time) error

	PutSubscription(ctx context.Context, sub *model.PushSubscription, machineIDs []string) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsForMachine(ctx context.Context, machineID string) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// ListMachines returns the owner's machines, newest first, fully loaded.
func (s *gormStore) ListMachines(ctx context.Context, ownerID string) ([]model.Machine, error) {
	ctx, span := tracer.Start(ctx, "store.ListMachines")
	defer span.End()

	var machines []model.Machine
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&machines).Error; err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}

	ptrs := make([]*model.Machine, len(machines))
	for i := range machines {
		ptrs[i] = &machines[i]
	}
	if err := s.loadDetails(ctx, ptrs); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("machines.count", len(machines)))
	return machines, nil
}

// GetMachine returns one machine with components, risk factors and schedule.
func (s *gormStore) GetMachine(ctx context.Context, id string) (*model.Machine, error) {
	ctx, span := tracer.Start(ctx, "store.GetMachine")
	defer span.End()
	span.SetAttributes(attribute.String("machine.id", id))

	var m model.Machine
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: machine %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch machine %s: %w", id, err)
	}
	if err := s.loadDetails(ctx, []*model.Machine{&m}); err != nil {
		return nil, err
	}
	return &m, nil
}

// loadDetails fills components (in join order) and schedules for machines.
func (s *gormStore) loadDetails(ctx context.Context, machines []*model.Machine) error {
	if len(machines) == 0 {
		return nil
	}
	db := s.db.WithContext(ctx)

	ids := make([]string, len(machines))
	byID := make(map[string]*model.Machine, len(machines))
	for i, m := range machines {
		ids[i] = m.ID
		byID[m.ID] = m
		m.Components = []model.Component{}
		m.MaintenanceSchedule = nil
	}

	// Step 1: ordered join rows
	var links []model.MachineComponent
	if err := db.Where("machine_id IN ?", ids).Order("machine_id, position").Find(&links).Error; err != nil {
		return fmt.Errorf("failed to fetch machine components: %w", err)
	}

	// Step 2: the components themselves
	if len(links) > 0 {
		seen := make(map[string]struct{}, len(links))
		var componentIDs []string
		for _, l := range links {
			if _, ok := seen[l.ComponentID]; !ok {
				seen[l.ComponentID] = struct{}{}
				componentIDs = append(componentIDs, l.ComponentID)
			}
		}

		var components []model.Component
		if err := db.Preload("RiskFactors", orderByPosition).
			Where("id IN ?", componentIDs).
			Find(&components).Error; err != nil {
			return fmt.Errorf("failed to fetch components: %w", err)
		}
		componentMap := make(map[string]model.Component, len(components))
		for _, c := range components {
			componentMap[c.ID] = c
		}

		for _, l := range links {
			c, ok := componentMap[l.ComponentID]
			if !ok {
				continue
			}
			m := byID[l.MachineID]
			// A shared component is cloned so machines never alias each other.
			m.Components = append(m.Components, c.Clone())
		}
	}

	// Step 3: schedules with ordered tasks
	var schedules []model.MaintenanceSchedule
	if err := db.Preload("Tasks", orderByPosition).
		Where("machine_id IN ?", ids).
		Find(&schedules).Error; err != nil {
		return fmt.Errorf("failed to fetch maintenance schedules: %w", err)
	}
	for i := range schedules {
		if m, ok := byID[schedules[i].MachineID]; ok {
			sched := schedules[i]
			m.MaintenanceSchedule = &sched
		}
	}
	return nil
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position")
}

// SaveMachine persists the complete machine record in one transaction:
// the machine row, every component with its risk factors, the ordered
// component links, and the schedule with its tasks. Missing ids are
// assigned in place.
func (s *gormStore) SaveMachine(ctx context.Context, m *model.Machine) error {
	ctx, span := tracer.Start(ctx, "store.SaveMachine")
	defer span.End()

	now := time.Now().UTC()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	span.SetAttributes(attribute.String("machine.id", m.ID), attribute.Int("components.count", len(m.Components)))

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Step 1: the machine row
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "description", "type", "status", "updated_at"}),
		}).Create(m).Error; err != nil {
			return fmt.Errorf("failed to upsert machine %s: %w", m.ID, err)
		}

		// Step 2: components and their risk factors
		for i := range m.Components {
			c := &m.Components[i]
			if c.OwnerID == "" {
				c.OwnerID = m.OwnerID
			}
			if err := saveComponent(tx, c, now); err != nil {
				return err
			}
		}

		// Step 3: replace the ordered links
		if err := tx.Where("machine_id = ?", m.ID).Delete(&model.MachineComponent{}).Error; err != nil {
			return fmt.Errorf("failed to clear components of machine %s: %w", m.ID, err)
		}
		if len(m.Components) > 0 {
			links := make([]model.MachineComponent, len(m.Components))
			for i, c := range m.Components {
				links[i] = model.MachineComponent{MachineID: m.ID, ComponentID: c.ID, Position: i}
			}
			if err := tx.Create(&links).Error; err != nil {
				return fmt.Errorf("failed to link components of machine %s: %w", m.ID, err)
			}
		}

		// Step 4: replace the schedule
		return replaceSchedule(tx, m)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return err
	}
	return nil
}

func replaceSchedule(tx *gorm.DB, m *model.Machine) error {
	var scheduleIDs []string
	if err := tx.Model(&model.MaintenanceSchedule{}).
		Where("machine_id = ?", m.ID).
		Pluck("id", &scheduleIDs).Error; err != nil {
		return fmt.Errorf("failed to look up schedule of machine %s: %w", m.ID, err)
	}
	if err := deleteSchedules(tx, scheduleIDs); err != nil {
		return err
	}

	sched := m.MaintenanceSchedule
	if sched == nil {
		return nil
	}
	if sched.ID == "" {
		sched.ID = uuid.NewString()
	}
	sched.MachineID = m.ID
	if err := tx.Omit(clause.Associations).Create(sched).Error; err != nil {
		return fmt.Errorf("failed to create schedule for machine %s: %w", m.ID, err)
	}

	if len(sched.Tasks) == 0 {
		return nil
	}
	for i := range sched.Tasks {
		if sched.Tasks[i].ID == "" {
			sched.Tasks[i].ID = uuid.NewString()
		}
		sched.Tasks[i].ScheduleID = sched.ID
		sched.Tasks[i].Position = i
	}
	if err := tx.Create(&sched.Tasks).Error; err != nil {
		return fmt.Errorf("failed to create tasks for machine %s: %w", m.ID, err)
	}
	return nil
}

func deleteSchedules(tx *gorm.DB, scheduleIDs []string) error {
	if len(scheduleIDs) == 0 {
		return nil
	}
	if err := tx.Where("schedule_id IN ?", scheduleIDs).Delete(&model.MaintenanceTask{}).Error; err != nil {
		return fmt.Errorf("failed to delete maintenance tasks: %w", err)
	}
	if err := tx.Where("id IN ?", scheduleIDs).Delete(&model.MaintenanceSchedule{}).Error; err != nil {
		return fmt.Errorf("failed to delete maintenance schedules: %w", err)
	}
	return nil
}

// DeleteMachine removes a machine, its links and its schedule. Components
// stay in the library since other machines may reference them.
func (s *gormStore) DeleteMachine(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "store.DeleteMachine")
	defer span.End()
	span.SetAttributes(attribute.String("machine.id", id))

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&model.Machine{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete machine %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: machine %s", ErrNotFound, id)
		}

		if err := tx.Where("machine_id = ?", id).Delete(&model.MachineComponent{}).Error; err != nil {
			return fmt.Errorf("failed to unlink components of machine %s: %w", id, err)
		}
		if err := tx.Exec("DELETE FROM subscription_machine_mapping WHERE machine_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to unlink subscriptions of machine %s: %w", id, err)
		}

		var scheduleIDs []string
		if err := tx.Model(&model.MaintenanceSchedule{}).Where("machine_id = ?", id).Pluck("id", &scheduleIDs).Error; err != nil {
			return fmt.Errorf("failed to look up schedule of machine %s: %w", id, err)
		}
		return deleteSchedules(tx, scheduleIDs)
	})
}

// --- Component library ---

// ListComponents returns the owner's component library.
func (s *gormStore) ListComponents(ctx context.Context, ownerID string) ([]model.Component, error) {
	ctx, span := tracer.Start(ctx, "store.ListComponents")
	defer span.End()

	var components []model.Component
	if err := s.db.WithContext(ctx).
		Preload("RiskFactors", orderByPosition).
		Where("owner_id = ?", ownerID).
		Order("name").
		Find(&components).Error; err != nil {
		return nil, fmt.Errorf("failed to list components: %w", err)
	}
	return components, nil
}

// GetComponent returns one component with its risk factors.
func (s *gormStore) GetComponent(ctx context.Context, id string) (*model.Component, error) {
	ctx, span := tracer.Start(ctx, "store.GetComponent")
	defer span.End()

	var c model.Component
	if err := s.db.WithContext(ctx).
		Preload("RiskFactors", orderByPosition).
		Where("id = ?", id).
		First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: component %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch component %s: %w", id, err)
	}
	return &c, nil
}

// SaveComponent creates or replaces a component and its risk factors.
func (s *gormStore) SaveComponent(ctx context.Context, c *model.Component) error {
	ctx, span := tracer.Start(ctx, "store.SaveComponent")
	defer span.End()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return saveComponent(tx, c, time.Now().UTC())
	})
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func saveComponent(tx *gorm.DB, c *model.Component, now time.Time) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	var owners []string
	if err := tx.Model(&model.Component{}).Where("id = ?", c.ID).Limit(1).Pluck("owner_id", &owners).Error; err != nil {
		return fmt.Errorf("failed to look up component %s: %w", c.ID, err)
	}
	if len(owners) > 0 && owners[0] != c.OwnerID {
		return fmt.Errorf("%w: component %s belongs to another owner", ErrConflict, c.ID)
	}

	if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "category", "type", "description", "specifications", "updated_at"}),
	}).Create(c).Error; err != nil {
		return fmt.Errorf("failed to upsert component %s: %w", c.ID, err)
	}

	if err := tx.Where("component_id = ?", c.ID).Delete(&model.RiskFactor{}).Error; err != nil {
		return fmt.Errorf("failed to clear risk factors of component %s: %w", c.ID, err)
	}
	if len(c.RiskFactors) == 0 {
		return nil
	}
	for i := range c.RiskFactors {
		if c.RiskFactors[i].ID == "" {
			c.RiskFactors[i].ID = uuid.NewString()
		}
		c.RiskFactors[i].ComponentID = c.ID
		c.RiskFactors[i].Position = i
	}
	if err := tx.Create(&c.RiskFactors).Error; err != nil {
		return fmt.Errorf("failed to create risk factors of component %s: %w", c.ID, err)
	}
	return nil
}

// --- Maintenance reminders ---

// DueSchedules returns schedules inside the reminder window.
func (s *gormStore) DueSchedules(ctx context.Context, w Window) ([]DueSchedule, error) {
	ctx, span := tracer.Start(ctx, "store.DueSchedules")
	defer span.End()
	db := s.db.WithContext(ctx)

	var schedules []model.MaintenanceSchedule
	if err := db.Preload("Tasks", orderByPosition).
		Where("next_due <= ? AND (last_reminded_at IS NULL OR last_reminded_at < ?)", w.DueBefore, w.RemindedBefore).
		Find(&schedules).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch due schedules: %w", err)
	}
	if len(schedules) == 0 {
		return nil, nil
	}

	machineIDs := make([]string, len(schedules))
	for i, sc := range schedules {
		machineIDs[i] = sc.MachineID
	}
	var machines []model.Machine
	if err := db.Where("id IN ?", machineIDs).Find(&machines).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch machines of due schedules: %w", err)
	}
	machineMap := make(map[string]model.Machine, len(machines))
	for _, m := range machines {
		machineMap[m.ID] = m
	}

	due := make([]DueSchedule, 0, len(schedules))
	for _, sc := range schedules {
		m, ok := machineMap[sc.MachineID]
		if !ok {
			continue
		}
		due = append(due, DueSchedule{
			MachineID:   m.ID,
			MachineName: m.Name,
			OwnerID:     m.OwnerID,
			Schedule:    sc,
		})
	}
	span.SetAttributes(attribute.Int("schedules.due", len(due)))
	return due, nil
}

// MarkReminded records that reminders for the given schedules went out.
func (s *gormStore) MarkReminded(ctx context.Context, scheduleIDs []string, at time.Time) error {
	if len(scheduleIDs) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).
		Model(&model.MaintenanceSchedule{}).
		Where("id IN ?", scheduleIDs).
		Update("last_reminded_at", at).Error; err != nil {
		return fmt.Errorf("failed to mark schedules reminded: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

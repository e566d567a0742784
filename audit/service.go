package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nexuswars/server/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Entry holds one audit event to be recorded.
type Entry struct {
	PlayerUUID *string
	EventType  model.AuditEventType
	Details    interface{}
	IPAddress  string
}

// Service is the write-only audit sink. Events are buffered and written in
// batches; the audit table is append-only and rows are never touched again.
type Service struct {
	db     *gorm.DB
	ch     chan *model.AuditEvent
	stopCh chan struct{}
	wg     sync.WaitGroup
	logger *zap.Logger
}

// New creates the audit Service and starts its background writer.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	svc := &Service{
		db:     db,
		ch:     make(chan *model.AuditEvent, 1024),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Record enqueues an audit event for async persistence. It never blocks a
// game operation; if the buffer is full the event is dropped with a warning.
func (svc *Service) Record(e Entry) {
	detailsJSON, _ := json.Marshal(e.Details)
	row := &model.AuditEvent{
		PlayerUUID: e.PlayerUUID,
		EventType:  e.EventType,
		Details:    datatypes.JSON(detailsJSON),
		IPAddress:  e.IPAddress,
		Timestamp:  time.Now().UnixMilli(),
	}
	select {
	case svc.ch <- row:
	default:
		svc.logger.Warn("audit channel full, dropping event",
			zap.String("event_type", e.EventType))
	}
}

// Stop flushes remaining events and shuts down the writer.
// It blocks until the worker goroutine has finished.
func (svc *Service) Stop(_ context.Context) {
	select {
	case <-svc.stopCh:
	default:
		close(svc.stopCh)
	}
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	batch := make([]*model.AuditEvent, 0, 100)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("audit batch write failed", zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case row := <-svc.ch:
			batch = append(batch, row)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			// Drain remaining events.
			for {
				select {
				case row := <-svc.ch:
					batch = append(batch, row)
				default:
					flush()
					return
				}
			}
		}
	}
}

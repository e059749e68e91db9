package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"paycalc/internal/platform/querier"
	"paycalc/internal/requestctx"
)

type Event struct {
	ID         int64           `json:"id"`
	EntityType string          `json:"entityType"`
	EntityID   int64           `json:"entityId"`
	Action     string          `json:"action"`
	Actor      string          `json:"actor"`
	RequestID  string          `json:"requestId"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type Service struct {
	DB  querier.Querier
	now func() time.Time
}

func New(db querier.Querier) *Service {
	return &Service{DB: db, now: time.Now}
}

// Record stores an audit event. Actor and request ID come from ctx when
// the call originates from an HTTP request.
func (s *Service) Record(ctx context.Context, entityType string, entityID int64, action string, details any) error {
	detailsJSON := []byte("{}")
	if details != nil {
		payload, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		detailsJSON = payload
	}

	_, err := s.DB.Exec(ctx, `
    INSERT INTO audit_logs (entity_type, entity_id, action, actor, request_id, details, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
  `, entityType, entityID, action, requestctx.GetActor(ctx), requestctx.GetRequestID(ctx), string(detailsJSON), s.now().UTC())
	return err
}

func (s *Service) List(ctx context.Context, entityType string, entityID int64) ([]Event, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, entity_type, entity_id, action, actor, request_id, details, created_at
    FROM audit_logs
    WHERE entity_type = $1 AND entity_id = $2
    ORDER BY id
  `, entityType, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var evt Event
		var details string
		if err := rows.Scan(&evt.ID, &evt.EntityType, &evt.EntityID, &evt.Action, &evt.Actor, &evt.RequestID, &details, &evt.CreatedAt); err != nil {
			return nil, err
		}
		evt.Details = json.RawMessage(details)
		out = append(out, evt)
	}
	return out, rows.Err()
}

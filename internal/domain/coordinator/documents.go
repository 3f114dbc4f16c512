package coordinator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rpggio/adherence/internal/domain/symptom"
	"github.com/rpggio/adherence/internal/domain/syncqueue"
	"github.com/rpggio/adherence/internal/domain/treatment"
	"github.com/rpggio/adherence/internal/remote"
)

// Remote document fields. The payload holds the full JSON record; the other
// fields exist for queries.
const (
	fieldPayload  = "payload"
	fieldDateTime = "date_time"
	fieldKind     = "kind"
	fieldDate     = "date"
	fieldSymptoms = "symptom_count"
)

func sessionItem(s treatment.Session, now time.Time) (syncqueue.Item, error) {
	kind := syncqueue.KindMedicationSession
	collection := remote.MedicationSessions(s.UserID, s.PetID)
	if s.Kind == treatment.KindFluid {
		kind = syncqueue.KindFluidSession
		collection = remote.FluidSessions(s.UserID, s.PetID)
	}
	return syncqueue.NewItem(kind, collection, s.ID, s, s.AuditTime(), now)
}

func symptomItem(userID string, day symptom.Day, now time.Time) (syncqueue.Item, error) {
	return syncqueue.NewItem(syncqueue.KindSymptomDay, remote.SymptomDays(userID, day.PetID), day.Date.String(), day, day.UpdatedAt, now)
}

func decodeSession(item syncqueue.Item) (treatment.Session, bool, error) {
	switch item.Kind {
	case syncqueue.KindMedicationSession, syncqueue.KindFluidSession:
	default:
		return treatment.Session{}, false, nil
	}
	var s treatment.Session
	if err := json.Unmarshal(item.Payload, &s); err != nil {
		return treatment.Session{}, false, fmt.Errorf("decoding queued session %s: %w", item.DocumentID, err)
	}
	return s, true, nil
}

func documentFor(item syncqueue.Item) (remote.Document, error) {
	fields := map[string]any{
		fieldPayload: string(item.Payload),
		fieldKind:    string(item.Kind),
	}
	switch item.Kind {
	case syncqueue.KindMedicationSession, syncqueue.KindFluidSession:
		s, _, err := decodeSession(item)
		if err != nil {
			return remote.Document{}, err
		}
		fields[fieldDateTime] = s.DateTime
	case syncqueue.KindSymptomDay:
		var day symptom.Day
		if err := json.Unmarshal(item.Payload, &day); err != nil {
			return remote.Document{}, fmt.Errorf("decoding queued symptom day %s: %w", item.DocumentID, err)
		}
		fields[fieldDate] = day.Date.String()
		fields[fieldSymptoms] = day.SymptomCount()
	default:
		return remote.Document{}, fmt.Errorf("unknown queue item kind %q", item.Kind)
	}
	return remote.Document{
		Collection: item.Collection,
		ID:         item.DocumentID,
		Fields:     fields,
		AuditTime:  item.AuditTime,
	}, nil
}

func sessionFromDocument(doc remote.Document) (treatment.Session, error) {
	raw, ok := doc.Fields[fieldPayload].(string)
	if !ok {
		return treatment.Session{}, fmt.Errorf("document %s has no payload", doc.Path())
	}
	var s treatment.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return treatment.Session{}, fmt.Errorf("decoding document %s: %w", doc.Path(), err)
	}
	return s, nil
}

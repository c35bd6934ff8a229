package booking

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/healthhub/healthhub/internal/platform/legacy"
)

// Legacy documents name the assigned doctor under either key.
var legacyDoctorKeys = []string{"doctorAssigned", "doctorId"}

// legacyAliases maps each canonical field to the legacy document keys that
// have held it, highest precedence first. Dotted keys address nested maps.
var legacyAliases = map[string][]string{
	"patient_id":       {"patientId", "userId", "uid"},
	"patient_name":     {"patientName", "patientInfo.name", "patientInfo.fullName", "name", "fullName"},
	"patient_email":    {"patientEmail", "patientInfo.email", "email", "userEmail"},
	"patient_phone":    {"patientPhone", "patientInfo.phone", "phone", "mobile"},
	"service_id":       {"serviceId", "service.id"},
	"service_name":     {"serviceName", "service.name", "service", "serviceType"},
	"doctor_code":      {"doctorAssigned", "doctorId", "doctorCode"},
	"doctor_name":      {"doctorName", "doctor.name", "doctor"},
	"appointment_date": {"appointmentDate", "date", "preferredDate"},
	"appointment_time": {"appointmentTime", "time", "preferredTime", "timeSlot"},
	"status":           {"status"},
	"payment_status":   {"paymentStatus", "payment.status"},
	"payment_ref":      {"paymentId", "payment.id"},
	"urgency":          {"urgency", "priority"},
	"symptoms":         {"symptoms", "patientInfo.symptoms", "reason"},
	"notes":            {"notes", "additionalNotes", "patientInfo.notes"},
	"invoice_id":       {"invoiceId", "invoiceNumber", "invoice"},
	"total_amount":     {"totalAmount", "amount", "price", "fee"},
	"created_at":       {"createdAt", "timestamp", "bookedAt"},
	"updated_at":       {"updatedAt"},
}

var legacyStatusNames = map[string]string{
	"pending":     StatusPending,
	"scheduled":   StatusPending,
	"confirmed":   StatusConfirmed,
	"accepted":    StatusConfirmed,
	"completed":   StatusCompleted,
	"done":        StatusCompleted,
	"cancelled":   StatusCancelled,
	"canceled":    StatusCancelled,
	"rejected":    StatusCancelled,
	"no-show":     StatusNoShow,
	"no_show":     StatusNoShow,
	"noshow":      StatusNoShow,
	"not-arrived": StatusNoShow,
}

// legacyNamespace seeds the ids derived from legacy document ids.
var legacyNamespace = uuid.MustParse("5b0f5a54-7c1e-4d6f-9a53-3f1c2a9e8d10")

// LegacyBookingID derives the canonical id of a legacy document. The same
// document id in either collection maps to the same booking.
func LegacyBookingID(docID string) uuid.UUID {
	return uuid.NewSHA1(legacyNamespace, []byte(docID))
}

// lookup resolves a dotted key in fields.
func lookup(fields map[string]any, key string) (any, bool) {
	var cur any = fields
	for _, part := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case int, int32, int64:
		return fmt.Sprintf("%d", t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return ""
	}
}

// coalesce returns the first non-empty value for field across docs, trying
// every alias of a document before moving to the next document.
func coalesce(docs []legacy.Document, field string) any {
	for _, d := range docs {
		for _, key := range legacyAliases[field] {
			v, ok := lookup(d.Fields, key)
			if !ok {
				continue
			}
			if _, isMap := v.(map[string]any); isMap {
				continue
			}
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v
		}
	}
	return nil
}

func coalesceString(docs []legacy.Document, field string) string {
	return asString(coalesce(docs, field))
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(t, "₹")), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts
			}
		}
	case int64:
		return time.UnixMilli(t).UTC()
	case float64:
		return time.UnixMilli(int64(t)).UTC()
	}
	return time.Time{}
}

func normalizeStatus(s string) string {
	if v, ok := legacyStatusNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return v
	}
	return StatusPending
}

func normalizePaymentStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if validPaymentStatuses[s] {
		return s
	}
	if s == "success" || s == "completed" {
		return PaymentPaid
	}
	return PaymentPending
}

func normalizeUrgency(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if validUrgencies[s] {
		return s
	}
	if s == "high" || s == "emergency" {
		return UrgencyUrgent
	}
	return UrgencyNormal
}

// FromLegacy builds the canonical view of one legacy booking from the
// documents that share its id, in precedence order.
func FromLegacy(docs []legacy.Document) *Booking {
	if len(docs) == 0 {
		return nil
	}
	id := docs[0].ID
	sources := make([]string, 0, len(docs))
	for _, d := range docs {
		sources = append(sources, d.Collection)
	}
	source := strings.Join(sources, ",")

	b := &Booking{
		ID:              LegacyBookingID(id),
		LegacyID:        &id,
		LegacySource:    &source,
		PatientName:     coalesceString(docs, "patient_name"),
		PatientEmail:    strings.ToLower(coalesceString(docs, "patient_email")),
		PatientPhone:    coalesceString(docs, "patient_phone"),
		ServiceID:       coalesceString(docs, "service_id"),
		ServiceName:     coalesceString(docs, "service_name"),
		DoctorCode:      coalesceString(docs, "doctor_code"),
		DoctorName:      coalesceString(docs, "doctor_name"),
		AppointmentDate: coalesceString(docs, "appointment_date"),
		AppointmentTime: coalesceString(docs, "appointment_time"),
		Status:          normalizeStatus(coalesceString(docs, "status")),
		PaymentStatus:   normalizePaymentStatus(coalesceString(docs, "payment_status")),
		PaymentRef:      coalesceString(docs, "payment_ref"),
		Urgency:         normalizeUrgency(coalesceString(docs, "urgency")),
		Symptoms:        coalesceString(docs, "symptoms"),
		Notes:           coalesceString(docs, "notes"),
		InvoiceID:       coalesceString(docs, "invoice_id"),
		TotalAmount:     asFloat(coalesce(docs, "total_amount")),
		CreatedAt:       asTime(coalesce(docs, "created_at")),
		UpdatedAt:       asTime(coalesce(docs, "updated_at")),
		Source:          source,
	}
	if pid, err := uuid.Parse(coalesceString(docs, "patient_id")); err == nil {
		b.PatientID = &pid
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = b.CreatedAt
	}
	return b
}

// GroupLegacy groups documents by id, keeping the first-seen collection
// first, and returns the canonical view of each group in input order.
func GroupLegacy(docs []legacy.Document) []*Booking {
	groups := make(map[string][]legacy.Document)
	var order []string
	for _, d := range docs {
		if _, seen := groups[d.ID]; !seen {
			order = append(order, d.ID)
		}
		groups[d.ID] = append(groups[d.ID], d)
	}
	out := make([]*Booking, 0, len(order))
	for _, id := range order {
		out = append(out, FromLegacy(groups[id]))
	}
	return out
}

// Merge combines canonical rows with legacy views, dropping legacy records
// already present in the canonical table, newest first.
func Merge(canonical, fromLegacy []*Booking) []*Booking {
	seen := make(map[uuid.UUID]bool, len(canonical))
	seenLegacy := make(map[string]bool)
	out := make([]*Booking, 0, len(canonical)+len(fromLegacy))
	for _, b := range canonical {
		seen[b.ID] = true
		if b.LegacyID != nil {
			seenLegacy[*b.LegacyID] = true
		}
		out = append(out, b)
	}
	for _, b := range fromLegacy {
		if seen[b.ID] || (b.LegacyID != nil && seenLegacy[*b.LegacyID]) {
			continue
		}
		seen[b.ID] = true
		out = append(out, b)
	}
	sortNewestFirst(out)
	return out
}

func sortNewestFirst(items []*Booking) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

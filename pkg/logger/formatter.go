package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CustomJSONFormatter struct {
	TimestampFormat string
	PrettyPrint     bool
	AppName         string
	Version         string
}

func (f *CustomJSONFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	data := make(map[string]interface{}, len(entry.Data)+6)

	timestampFormat := f.TimestampFormat
	if timestampFormat == "" {
		timestampFormat = time.RFC3339
	}
	data["timestamp"] = entry.Time.Format(timestampFormat)
	data["level"] = entry.Level.String()
	data["message"] = entry.Message

	if f.AppName != "" {
		data["app"] = f.AppName
	}
	if f.Version != "" {
		data["version"] = f.Version
	}

	if entry.HasCaller() {
		data["caller"] = fmt.Sprintf("%s:%d", entry.Caller.File, entry.Caller.Line)
		data["function"] = entry.Caller.Function
	}

	for k, v := range entry.Data {
		// errors do not marshal to anything useful
		if err, ok := v.(error); ok {
			data[k] = err.Error()
			continue
		}
		data[k] = v
	}

	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	encoder := json.NewEncoder(b)
	if f.PrettyPrint {
		encoder.SetIndent("", "  ")
	}

	if err := encoder.Encode(data); err != nil {
		return nil, fmt.Errorf("failed to marshal fields to JSON: %w", err)
	}

	return b.Bytes(), nil
}

// AuditLogger records financial decisions that need manual review later.
type AuditLogger struct {
	logger *Logger
}

func NewAuditLogger(logger *Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger.WithField("type", "audit"),
	}
}

func (a *AuditLogger) LogAmountMismatch(paymentID string, provider string, stored, asserted float64) {
	a.logger.WithFields(map[string]interface{}{
		"gateway_payment_id": paymentID,
		"provider":           provider,
		"stored_amount":      stored,
		"asserted_amount":    asserted,
		"timestamp":          time.Now().UTC(),
	}).Error("Amount mismatch requires manual reconciliation")
}

func (a *AuditLogger) LogWithdrawalDecision(requestID primitive.ObjectID, decision string, amount float64, adminID *primitive.ObjectID, notes string) {
	fields := map[string]interface{}{
		"withdrawal_request_id": requestID.Hex(),
		"decision":              decision,
		"amount":                amount,
		"notes":                 notes,
		"timestamp":             time.Now().UTC(),
	}

	if adminID != nil {
		fields["admin_id"] = adminID.Hex()
	}

	a.logger.WithFields(fields).Info("Withdrawal decision recorded")
}

func (a *AuditLogger) LogInvariantDrift(ownerKind string, ownerID primitive.ObjectID, details map[string]interface{}) {
	fields := map[string]interface{}{
		"owner_kind": ownerKind,
		"owner_id":   ownerID.Hex(),
	}
	for k, v := range details {
		fields[k] = v
	}

	a.logger.WithFields(fields).Error("Wallet counters drifted from transaction history")
}

package logging

import (
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/indexd/internal/redact"
)

// redactingCore scrubs log fields before they reach the encoder: fields
// with secret-shaped keys are replaced wholesale, and string values are
// scanned for embedded secret shapes.
type redactingCore struct {
	zapcore.Core
}

func newRedactingCore(core zapcore.Core) zapcore.Core {
	return &redactingCore{Core: core}
}

func (c *redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactingCore{Core: c.Core.With(redactFields(fields))}
}

func (c *redactingCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *redactingCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(entry, redactFields(fields))
}

func redactFields(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		if f.Type == zapcore.StringType {
			switch {
			case redact.IsSensitiveKey(f.Key), redact.IsSensitiveValue(f.String):
				f.String = redact.Placeholder
			default:
				f.String = redact.Text(f.String)
			}
		}
		out[i] = f
	}
	return out
}

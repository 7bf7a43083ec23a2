package logging

import "go.uber.org/zap/zapcore"

// sampledCore gives each configured level its own sampler. Entries at
// other levels go straight to the wrapped core.
type sampledCore struct {
	zapcore.Core
	byLevel map[zapcore.Level]zapcore.Core
}

func newSampledCore(core zapcore.Core, s Sampling) zapcore.Core {
	if !s.Enabled {
		return core
	}
	byLevel := make(map[zapcore.Level]zapcore.Core, len(s.Rates))
	for lvl, rate := range s.Rates {
		if lvl >= zapcore.ErrorLevel {
			continue
		}
		byLevel[lvl] = zapcore.NewSamplerWithOptions(core, s.Tick, rate.First, rate.Thereafter)
	}
	if len(byLevel) == 0 {
		return core
	}
	return &sampledCore{Core: core, byLevel: byLevel}
}

func (c *sampledCore) With(fields []zapcore.Field) zapcore.Core {
	byLevel := make(map[zapcore.Level]zapcore.Core, len(c.byLevel))
	for lvl, sc := range c.byLevel {
		byLevel[lvl] = sc.With(fields)
	}
	return &sampledCore{Core: c.Core.With(fields), byLevel: byLevel}
}

func (c *sampledCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if sc, ok := c.byLevel[ent.Level]; ok {
		return sc.Check(ent, ce)
	}
	return c.Core.Check(ent, ce)
}

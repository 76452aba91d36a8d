package logger

// fanout duplicates every record to several loggers. A job uses it to write
// both to the process log and to its own drainable log channel.
type fanout struct {
	targets []Logger
}

// Fanout combines loggers; nil entries are ignored.
func Fanout(loggers ...Logger) Logger {
	targets := make([]Logger, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			targets = append(targets, l)
		}
	}
	if len(targets) == 1 {
		return targets[0]
	}
	return &fanout{targets: targets}
}

func (f *fanout) Debug(msg string, keyvals ...any) {
	for _, l := range f.targets {
		l.Debug(msg, keyvals...)
	}
}

func (f *fanout) Info(msg string, keyvals ...any) {
	for _, l := range f.targets {
		l.Info(msg, keyvals...)
	}
}

func (f *fanout) Warn(msg string, keyvals ...any) {
	for _, l := range f.targets {
		l.Warn(msg, keyvals...)
	}
}

func (f *fanout) Error(msg string, keyvals ...any) {
	for _, l := range f.targets {
		l.Error(msg, keyvals...)
	}
}

func (f *fanout) With(keyvals ...any) Logger {
	next := make([]Logger, len(f.targets))
	for i, l := range f.targets {
		next[i] = l.With(keyvals...)
	}
	return &fanout{targets: next}
}

package asar

import "log/slog"

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithWriterLogger sets the logger for archive assembly.
// If not set, logging is disabled.
func WithWriterLogger(logger *slog.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = logger
	}
}

// WithProgress sets a callback that receives an event as each member has
// been fully spliced into the output stream.
func WithProgress(fn ProgressFunc) WriterOption {
	return func(w *Writer) {
		w.progress = fn
	}
}

// WithComputeIntegrity records integrity metadata for members added with
// AddBytes and AddFile. Members added from arbitrary readers are unaffected
// because their content is only read when the archive is streamed.
func WithComputeIntegrity(blockSize int) WriterOption {
	return func(w *Writer) {
		w.computeIntegrity = true
		w.integrityBlockSize = blockSize
	}
}

// WithShortSourcePolicy sets how members whose source ends before the
// declared size are handled. The default is ShortSourceError.
func WithShortSourcePolicy(p ShortSourcePolicy) WriterOption {
	return func(w *Writer) {
		w.shortSource = p
	}
}

// FileOption configures a single archive member.
type FileOption func(*fileConfig)

type fileConfig struct {
	executable    bool
	executableSet bool
	integrity     *Integrity
}

// WithExecutable marks the member as executable.
func WithExecutable(executable bool) FileOption {
	return func(c *fileConfig) {
		c.executable = executable
		c.executableSet = true
	}
}

// WithFileIntegrity attaches precomputed integrity metadata to the member.
// It takes precedence over WithComputeIntegrity.
func WithFileIntegrity(integrity *Integrity) FileOption {
	return func(c *fileConfig) {
		c.integrity = integrity
	}
}

package domain

import "path/filepath"

const (
	// KilnDirName is the name of the build-private state directory.
	KilnDirName = ".kiln"

	// WorkDirName is the name of the per-target working directory tree.
	WorkDirName = "work"

	// ScratchDirName is the name of the private directory owned by a target during run and clean.
	ScratchDirName = "scratch"

	// RecordFileName is the name of the file holding a target's implicit inputs.
	RecordFileName = "implicit-inputs.txt"

	// ProgressFileName is the name of the progress tape written by the progress reporter.
	ProgressFileName = "progress.jsonl"

	// BuildFileName is the name of the build file.
	BuildFileName = "kiln.yaml"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600
)

// DefaultKilnPath returns the state directory below root.
func DefaultKilnPath(root string) string {
	return filepath.Join(root, KilnDirName)
}

// DefaultWorkPath returns the root of the per-target working directory tree.
// It joins .kiln and work.
func DefaultWorkPath(root string) string {
	return filepath.Join(root, KilnDirName, WorkDirName)
}

// DefaultProgressPath returns the path of the progress tape.
func DefaultProgressPath(root string) string {
	return filepath.Join(root, KilnDirName, ProgressFileName)
}

// TargetStatePath returns the directory owned by t below the working tree.
// Two targets never share it, even if their expanded output paths coincide.
func TargetStatePath(root string, t Target) string {
	b := t.Base()
	return filepath.Join(DefaultWorkPath(root), b.TypeName(), b.ID())
}

// ScratchPath returns the private working directory of t.
func ScratchPath(root string, t Target) string {
	return filepath.Join(TargetStatePath(root, t), ScratchDirName)
}

// RecordPath returns the path of the implicit input record of t.
func RecordPath(root string, t Target) string {
	return filepath.Join(TargetStatePath(root, t), RecordFileName)
}

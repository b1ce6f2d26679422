package domain

import "go.trai.ch/zerr"

// Error classes. They are joined onto errors leaving the application layer so the
// CLI can map a failure to its exit code.
var (
	// ErrConfiguration marks build-file and graph errors detected before any target runs.
	ErrConfiguration = zerr.New("configuration error")

	// ErrPreBuildCheck marks failures while resolving dependencies of the selected targets.
	ErrPreBuildCheck = zerr.New("pre-build check failed")

	// ErrBuildFailed marks a build in which at least one target failed terminally.
	ErrBuildFailed = zerr.New("build failed")

	// ErrInternal marks a defect in kiln itself, such as a panicking target action.
	ErrInternal = zerr.New("internal error")
)

var (
	// ErrTargetAlreadyExists is returned when two targets are declared with the same name.
	ErrTargetAlreadyExists = zerr.New("target already exists")

	// ErrDuplicateOutputPath is returned when two targets resolve to the same output path.
	ErrDuplicateOutputPath = zerr.New("output path is produced by more than one target")

	// ErrTargetNotFound is returned when a referenced target does not exist.
	ErrTargetNotFound = zerr.New("target not found")

	// ErrTagNotFound is returned when no target carries a referenced tag.
	ErrTagNotFound = zerr.New("no target carries tag")

	// ErrRegistryFrozen is returned when a registry builder is modified after Freeze.
	ErrRegistryFrozen = zerr.New("target registry is frozen")

	// ErrGroupAlreadyExists is returned when an atomic group name is declared twice.
	ErrGroupAlreadyExists = zerr.New("atomic group already exists")

	// ErrTargetInMultipleGroups is returned when a target is a member of two atomic groups.
	ErrTargetInMultipleGroups = zerr.New("target belongs to more than one atomic group")

	// ErrEmptyGroup is returned when an atomic group has no members.
	ErrEmptyGroup = zerr.New("atomic group has no members")

	// ErrCycleDetected is returned when the target dependency graph contains a cycle.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrNegativePriority is returned when a target is given a priority below zero.
	ErrNegativePriority = zerr.New("priority must not be negative")

	// ErrNegativeRetries is returned when a target is given a negative retry count.
	ErrNegativeRetries = zerr.New("failure retries must not be negative")

	// ErrInvalidTargetName is returned when a target name is empty or malformed.
	ErrInvalidTargetName = zerr.New("invalid target name")

	// ErrInvalidPathCharacter is returned when a resolved path contains a disallowed character.
	ErrInvalidPathCharacter = zerr.New("path contains a disallowed character")

	// ErrInvalidPathComponent is returned when a path component ends with a dot or a space.
	ErrInvalidPathComponent = zerr.New("path component must not end with a dot or a space")

	// ErrOutputPathOutsideRoot is returned when an output path escapes the build root.
	ErrOutputPathOutsideRoot = zerr.New("output path is outside the build root")

	// ErrUndefinedProperty is returned when a placeholder references an unknown property.
	ErrUndefinedProperty = zerr.New("undefined property")

	// ErrUnterminatedPlaceholder is returned when a "${" has no closing brace.
	ErrUnterminatedPlaceholder = zerr.New("unterminated property placeholder")

	// ErrPathNotResolved is returned when a target path is used before path resolution.
	ErrPathNotResolved = zerr.New("target path has not been resolved")
)

var (
	// ErrInvalidPattern is returned when a glob pattern is malformed.
	ErrInvalidPattern = zerr.New("invalid pattern")

	// ErrPatternRootNotFound is returned when a pattern's root directory does not exist.
	ErrPatternRootNotFound = zerr.New("pattern root directory does not exist")

	// ErrPatternUnused is returned when an include pattern matches nothing.
	ErrPatternUnused = zerr.New("include pattern did not match anything")

	// ErrSourceNotFound is returned when a declared dependency path does not exist
	// and no target produces it.
	ErrSourceNotFound = zerr.New("dependency does not exist and no target produces it")

	// ErrInvalidDestination is returned when a destination escapes its parent directory.
	ErrInvalidDestination = zerr.New("destination path escapes its parent directory")

	// ErrDependencyResolutionFailed is returned when a target's dependencies cannot be resolved.
	ErrDependencyResolutionFailed = zerr.New("failed to resolve dependencies")

	// ErrSkipDir is returned by a walk callback to prune the current directory.
	ErrSkipDir = zerr.New("skip directory")
)

var (
	// ErrTargetExecutionFailed is returned when a target's run fails.
	ErrTargetExecutionFailed = zerr.New("target execution failed")

	// ErrTargetPanicked is returned when a target's action panics.
	ErrTargetPanicked = zerr.New("target panicked")

	// ErrOutputNotCreated is returned when a target reports success without creating its output.
	ErrOutputNotCreated = zerr.New("target did not create its output")

	// ErrBlockedByFailure is recorded for targets that never ran because a dependency failed.
	ErrBlockedByFailure = zerr.New("not built because a dependency failed")

	// ErrBuildAborted is returned when the build stopped before every target was considered.
	ErrBuildAborted = zerr.New("build aborted")

	// ErrCleanFailed is returned when a target's clean fails.
	ErrCleanFailed = zerr.New("failed to clean target")

	// ErrProcessTimeout is returned when a spawned process exceeds its timeout.
	ErrProcessTimeout = zerr.New("process timed out")

	// ErrProcessFailed is returned when a spawned process exits unsuccessfully.
	ErrProcessFailed = zerr.New("process failed")

	// ErrEmptyCommand is returned when a command target has nothing to execute.
	ErrEmptyCommand = zerr.New("command is empty")

	// ErrCopySourceCount is returned when a copy target with a file output does not have exactly one file source.
	ErrCopySourceCount = zerr.New("a file output copies exactly one file")

	// ErrUpToDateCheckFailed is returned when a target's staleness cannot be determined.
	ErrUpToDateCheckFailed = zerr.New("failed to check whether target is up to date")

	// ErrDependencyDeleted is a verification warning for a dependency removed during the build.
	ErrDependencyDeleted = zerr.New("dependency was deleted during the build")

	// ErrDependencyModified is a verification warning for a dependency modified after the target started.
	ErrDependencyModified = zerr.New("dependency was modified after the target started")
)

var (
	// ErrRecordReadFailed is returned when an implicit input record cannot be read.
	ErrRecordReadFailed = zerr.New("failed to read implicit input record")

	// ErrRecordWriteFailed is returned when an implicit input record cannot be written.
	ErrRecordWriteFailed = zerr.New("failed to write implicit input record")

	// ErrRecordDeleteFailed is returned when an implicit input record cannot be removed.
	ErrRecordDeleteFailed = zerr.New("failed to remove implicit input record")

	// ErrPathStatFailed is returned when stating a path fails for a reason other than absence.
	ErrPathStatFailed = zerr.New("failed to stat path")

	// ErrConfigNotFound is returned when no build file can be found.
	ErrConfigNotFound = zerr.New("could not find kiln.yaml")

	// ErrConfigReadFailed is returned when the build file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read build file")

	// ErrConfigParseFailed is returned when the build file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse build file")

	// ErrUnknownTargetType is returned when a build file declares an unsupported target type.
	ErrUnknownTargetType = zerr.New("unknown target type")

	// ErrUnknownDependencyKind is returned when a dependency entry has an unsupported shape.
	ErrUnknownDependencyKind = zerr.New("unknown dependency kind")

	// ErrSettingsLoadFailed is returned when environment settings cannot be parsed.
	ErrSettingsLoadFailed = zerr.New("failed to load settings from environment")
)

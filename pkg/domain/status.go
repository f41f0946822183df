package domain

// RunStatus tracks the generation lifecycle of a document's agent. Terminal
// values are sticky until the next prompt sets the status back to working.
type RunStatus string

const (
	RunStatusIdle      RunStatus = "idle"
	RunStatusWorking   RunStatus = "working"
	RunStatusCompleted RunStatus = "completed"
	RunStatusError     RunStatus = "error"
)

// MemoryStatus is the confirmation state of a proposed memory.
type MemoryStatus string

const (
	MemoryStatusPending   MemoryStatus = "pending"
	MemoryStatusConfirmed MemoryStatus = "confirmed"
	MemoryStatusRejected  MemoryStatus = "rejected"
)

// MemoryCategory classifies what kind of fact a memory records.
type MemoryCategory string

const (
	MemoryCategoryUserFact   MemoryCategory = "user_fact"
	MemoryCategoryProject    MemoryCategory = "project"
	MemoryCategoryDomain     MemoryCategory = "domain"
	MemoryCategoryPreference MemoryCategory = "preference"
)

// ValidMemoryCategory reports whether c is one of the enumerated categories.
func ValidMemoryCategory(c MemoryCategory) bool {
	switch c {
	case MemoryCategoryUserFact, MemoryCategoryProject, MemoryCategoryDomain, MemoryCategoryPreference:
		return true
	}
	return false
}

// ConfigStatus is the lifecycle state of agent configs and skills.
type ConfigStatus string

const (
	ConfigStatusActive   ConfigStatus = "active"
	ConfigStatusArchived ConfigStatus = "archived"
)

// TemplateFileType tags what a skill template contains.
type TemplateFileType string

const (
	TemplateFileTypeTemplate  TemplateFileType = "template"
	TemplateFileTypeExample   TemplateFileType = "example"
	TemplateFileTypeReference TemplateFileType = "reference"
)

// SelectionStatus is the lifecycle state of a captured editor selection.
type SelectionStatus string

const (
	SelectionStatusActive    SelectionStatus = "active"
	SelectionStatusUsed      SelectionStatus = "used"
	SelectionStatusDismissed SelectionStatus = "dismissed"
)

// Document types with static agent definitions. Unknown types fall back to
// the freeform agent.
const (
	DocTypeFreeform      = "freeform"
	DocTypeStoryboard    = "storyboard"
	DocTypeCourseOutline = "course_outline"

	// TypeWildcard in an agent config's assigned types makes the config
	// eligible for every document type.
	TypeWildcard = "*"
)

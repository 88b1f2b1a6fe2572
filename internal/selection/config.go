package selection

// QuestionType narrows free-custom selection to one kind of question.
type QuestionType string

const (
	TypeTheoretical QuestionType = "theoretical"
	TypePractical   QuestionType = "practical"
	TypeBoth        QuestionType = "both"
)

// CountAll requests every matching question instead of a fixed quantity.
const CountAll = -1

// Config identifies one of the supported quiz modes. The variants are a
// sealed set so mode dispatch is an exhaustive type switch.
type Config interface {
	isConfig()
	Mode() string
}

// Official replays a stored exam in its published question order.
type Official struct {
	Year      int
	Region    string
	Specialty string
}

// FreeRandom builds an unfiltered mixed quiz whose size is drawn from the
// configured size pool.
type FreeRandom struct{}

// FreeCustom selects by topic set and question type.
type FreeCustom struct {
	Count    int // CountAll for "every matching question"
	Type     QuestionType
	TopicIDs []int64
}

func (Official) isConfig()   {}
func (FreeRandom) isConfig() {}
func (FreeCustom) isConfig() {}

func (Official) Mode() string   { return "official" }
func (FreeRandom) Mode() string { return "free_random" }
func (FreeCustom) Mode() string { return "free_custom" }

// Status reports non-fatal selection outcomes to the caller.
type Status string

const (
	StatusOK        Status = "ok"
	StatusEmpty     Status = "no_questions"
	StatusBadConfig Status = "bad_config"
)

// Result is the ordered outcome of a selection run. QuestionIDs is in
// presentation order; for non-official modes that is the shuffle order.
type Result struct {
	QuestionIDs    []int64
	Status         Status
	TargetSize     int
	ClosurePartial bool
}

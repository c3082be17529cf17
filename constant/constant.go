package constant

type Quality string

const (
	Quality1080p Quality = "1080p"
	Quality720p  Quality = "720p"
	Quality480p  Quality = "480p"
	Quality360p  Quality = "360p"
	Quality144p  Quality = "144p"

	QualityUnknown Quality = "unknown"
)

// QualityLadder is ordered highest first. The resolver walks it top down.
var QualityLadder = []Quality{
	Quality1080p,
	Quality720p,
	Quality480p,
	Quality360p,
	Quality144p,
}

// Rank returns the position of q in the ladder, lower is better.
// Unknown qualities rank below everything.
func (q Quality) Rank() int {
	for i, candidate := range QualityLadder {
		if candidate == q {
			return i
		}
	}
	return len(QualityLadder)
}

// AtMost reports whether q is at or below ceiling.
func (q Quality) AtMost(ceiling Quality) bool {
	return q.Rank() >= ceiling.Rank()
}

func (q Quality) String() string {
	return string(q)
}

// QualityForHeight maps a probed video height to the nearest ladder label.
func QualityForHeight(height int) Quality {
	switch {
	case height >= 1080:
		return Quality1080p
	case height >= 720:
		return Quality720p
	case height >= 480:
		return Quality480p
	case height >= 360:
		return Quality360p
	case height > 0:
		return Quality144p
	default:
		return QualityUnknown
	}
}

type Category string

const (
	CategoryMovie Category = "movie"
	CategoryShow  Category = "show"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type FindingKind string

const (
	FindingProtected           FindingKind = "protected"
	FindingOrphan              FindingKind = "orphan"
	FindingDatabaseDuplicate   FindingKind = "database_duplicate"
	FindingFilesystemDuplicate FindingKind = "filesystem_duplicate"
	FindingMismatch            FindingKind = "mismatch"
	FindingMissing             FindingKind = "missing"
)

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}

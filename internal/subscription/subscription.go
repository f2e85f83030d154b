// Package subscription models named, ordered collections of filters: lists
// the user maintains by hand and lists downloaded from a server.
package subscription

import (
	"strconv"
	"strings"

	"github.com/bnema/abpcore/internal/filter"
	"github.com/bnema/abpcore/internal/notifier"
)

// Subscription is a named, ordered sequence of shared filter references.
type Subscription interface {
	ID() string
	Title() string
	SetTitle(string)
	Disabled() bool
	SetDisabled(bool)
	Listed() bool
	SetListed(bool)
	FilterCount() int
	FilterAt(index int) filter.Filter
	IndexOfFilter(f filter.Filter) int
	// SetFilters replaces the filter sequence. It adopts the passed
	// references and releases the previously held ones.
	SetFilters([]filter.Filter)
	Serialize() string
	SerializeFilters() string
}

type base struct {
	id       string
	title    string
	disabled bool
	listed   bool
	filters  []filter.Filter
	self     Subscription
}

// FromID creates the subscription variant matching an identifier: synthetic
// "~"-prefixed ids are user-defined lists, anything else is downloadable.
func FromID(id string) Subscription {
	if strings.HasPrefix(id, "~") {
		return NewUserDefined(id)
	}
	return NewDownloadable(id)
}

func (s *base) ID() string { return s.id }

func (s *base) Title() string { return s.title }

// SetTitle renames the subscription and notifies on change.
func (s *base) SetTitle(value string) {
	if s.title != value {
		s.title = value
		notifier.SubscriptionChange(notifier.SubscriptionTitle, s.self)
	}
}

func (s *base) Disabled() bool { return s.disabled }

// SetDisabled toggles the subscription and notifies on change.
func (s *base) SetDisabled(value bool) {
	if s.disabled != value {
		s.disabled = value
		notifier.SubscriptionChange(notifier.SubscriptionDisabled, s.self)
	}
}

func (s *base) Listed() bool { return s.listed }

// SetListed records whether the subscription is held by storage.
func (s *base) SetListed(value bool) { s.listed = value }

func (s *base) FilterCount() int { return len(s.filters) }

// FilterAt returns the filter at index, or nil when out of bounds.
func (s *base) FilterAt(index int) filter.Filter {
	if index < 0 || index >= len(s.filters) {
		return nil
	}
	return s.filters[index]
}

// IndexOfFilter returns the position of a filter, or -1.
func (s *base) IndexOfFilter(f filter.Filter) int {
	for i, held := range s.filters {
		if held == f {
			return i
		}
	}
	return -1
}

func (s *base) SetFilters(filters []filter.Filter) {
	for _, held := range s.filters {
		held.Release()
	}
	s.filters = filters
}

// Serialize renders the common subscription header fields.
func (s *base) Serialize() string {
	var sb strings.Builder
	sb.WriteString("[Subscription]\nurl=")
	sb.WriteString(s.id)
	sb.WriteByte('\n')
	if s.title != "" && s.title != s.id {
		sb.WriteString("title=")
		sb.WriteString(s.title)
		sb.WriteByte('\n')
	}
	if s.disabled {
		sb.WriteString("disabled=true\n")
	}
	return sb.String()
}

// SerializeFilters renders the filter texts held by the subscription.
func (s *base) SerializeFilters() string {
	var sb strings.Builder
	sb.WriteString("[Subscription filters]\n")
	for _, held := range s.filters {
		sb.WriteString(held.Text())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// FilterCategory classifies filters for per-category default lists.
type FilterCategory int

// Filter categories a user-defined subscription can be the default for.
const (
	CategoryNone      FilterCategory = 0
	CategoryWhitelist FilterCategory = 1
	CategoryBlocking  FilterCategory = 2
	CategoryElemHide  FilterCategory = 4
)

func categoryOf(f filter.Filter) FilterCategory {
	switch f.Type() {
	case filter.TypeBlocking:
		return CategoryBlocking
	case filter.TypeWhitelist:
		return CategoryWhitelist
	case filter.TypeElemHide, filter.TypeElemHideException, filter.TypeElemHideEmulation:
		return CategoryElemHide
	}
	return CategoryNone
}

// UserDefined is a subscription the user maintains by hand.
type UserDefined struct {
	base
	defaults FilterCategory
}

// NewUserDefined creates an empty user-defined subscription.
func NewUserDefined(id string) *UserDefined {
	s := &UserDefined{base: base{id: id}}
	s.self = s
	return s
}

// IsDefaultFor reports whether new filters of f's category land in this
// subscription by default.
func (s *UserDefined) IsDefaultFor(f filter.Filter) bool {
	category := categoryOf(f)
	return category != CategoryNone && s.defaults&category != 0
}

// MakeDefaultFor marks this subscription as the default for f's category.
func (s *UserDefined) MakeDefaultFor(f filter.Filter) {
	s.defaults |= categoryOf(f)
}

// IsGeneric reports whether the subscription is not the default for any
// category.
func (s *UserDefined) IsGeneric() bool { return s.defaults == CategoryNone }

// InsertFilterAt inserts a filter, retaining it. Positions past the end
// append.
func (s *UserDefined) InsertFilterAt(f filter.Filter, pos int) {
	if pos < 0 {
		pos = 0
	}
	if pos > len(s.filters) {
		pos = len(s.filters)
	}
	f.Retain()
	s.filters = append(s.filters, nil)
	copy(s.filters[pos+1:], s.filters[pos:])
	s.filters[pos] = f
}

// RemoveFilterAt removes the filter at pos, releasing it. Out-of-bounds
// positions are a no-op.
func (s *UserDefined) RemoveFilterAt(pos int) {
	if pos < 0 || pos >= len(s.filters) {
		return
	}
	s.filters[pos].Release()
	s.filters = append(s.filters[:pos], s.filters[pos+1:]...)
}

// Downloadable is a subscription kept in sync with a fetched filter list.
type Downloadable struct {
	base
	fixedTitle      bool
	homepage        string
	lastCheck       int64
	hardExpiration  int64
	softExpiration  int64
	lastDownload    int64
	downloadStatus  string
	lastSuccess     int64
	errorCount      int
	dataRevision    int64
	requiredVersion string
	downloadCount   int
}

// NewDownloadable creates a downloadable subscription titled after its id.
func NewDownloadable(id string) *Downloadable {
	s := &Downloadable{base: base{id: id, title: id}}
	s.self = s
	return s
}

// FixedTitle reports whether the title came from the list header and must
// not be edited.
func (s *Downloadable) FixedTitle() bool { return s.fixedTitle }

// SetFixedTitle updates the fixed-title flag and notifies on change.
func (s *Downloadable) SetFixedTitle(value bool) {
	if s.fixedTitle != value {
		s.fixedTitle = value
		notifier.SubscriptionChange(notifier.SubscriptionFixedTitle, s.self)
	}
}

// Homepage returns the list homepage.
func (s *Downloadable) Homepage() string { return s.homepage }

// SetHomepage updates the homepage and notifies on change.
func (s *Downloadable) SetHomepage(value string) {
	if s.homepage != value {
		s.homepage = value
		notifier.SubscriptionChange(notifier.SubscriptionHomepage, s.self)
	}
}

// LastCheck returns the time of the last update check in seconds.
func (s *Downloadable) LastCheck() int64 { return s.lastCheck }

// SetLastCheck updates the last-check time and notifies on change.
func (s *Downloadable) SetLastCheck(value int64) {
	if s.lastCheck != value {
		s.lastCheck = value
		notifier.SubscriptionChange(notifier.SubscriptionLastCheck, s.self)
	}
}

// HardExpiration returns the time the list must be re-downloaded.
func (s *Downloadable) HardExpiration() int64 { return s.hardExpiration }

// SetHardExpiration updates the hard expiration time.
func (s *Downloadable) SetHardExpiration(value int64) { s.hardExpiration = value }

// SoftExpiration returns the time the list should be re-downloaded.
func (s *Downloadable) SoftExpiration() int64 { return s.softExpiration }

// SetSoftExpiration updates the soft expiration time.
func (s *Downloadable) SetSoftExpiration(value int64) { s.softExpiration = value }

// LastDownload returns the time of the last download attempt in seconds.
func (s *Downloadable) LastDownload() int64 { return s.lastDownload }

// SetLastDownload updates the last-download time and notifies on change.
func (s *Downloadable) SetLastDownload(value int64) {
	if s.lastDownload != value {
		s.lastDownload = value
		notifier.SubscriptionChange(notifier.SubscriptionLastDownload, s.self)
	}
}

// DownloadStatus returns the outcome token of the last download.
func (s *Downloadable) DownloadStatus() string { return s.downloadStatus }

// SetDownloadStatus updates the download status and notifies on change.
func (s *Downloadable) SetDownloadStatus(value string) {
	if s.downloadStatus != value {
		s.downloadStatus = value
		notifier.SubscriptionChange(notifier.SubscriptionDownloadStatus, s.self)
	}
}

// LastSuccess returns the time of the last successful download in seconds.
func (s *Downloadable) LastSuccess() int64 { return s.lastSuccess }

// SetLastSuccess updates the last-success time.
func (s *Downloadable) SetLastSuccess(value int64) { s.lastSuccess = value }

// ErrorCount returns the number of consecutive failed downloads.
func (s *Downloadable) ErrorCount() int { return s.errorCount }

// SetErrorCount updates the error counter and notifies on change.
func (s *Downloadable) SetErrorCount(value int) {
	if s.errorCount != value {
		s.errorCount = value
		notifier.SubscriptionChange(notifier.SubscriptionErrors, s.self)
	}
}

// DataRevision returns the integer version from the list header.
func (s *Downloadable) DataRevision() int64 { return s.dataRevision }

// SetDataRevision updates the data revision.
func (s *Downloadable) SetDataRevision(value int64) { s.dataRevision = value }

// RequiredVersion returns the minimal engine version the list requires.
func (s *Downloadable) RequiredVersion() string { return s.requiredVersion }

// SetRequiredVersion updates the required engine version.
func (s *Downloadable) SetRequiredVersion(value string) { s.requiredVersion = value }

// DownloadCount returns how often the list was downloaded.
func (s *Downloadable) DownloadCount() int { return s.downloadCount }

// SetDownloadCount updates the download counter.
func (s *Downloadable) SetDownloadCount(value int) { s.downloadCount = value }

// Serialize renders the subscription and its download metadata.
func (s *Downloadable) Serialize() string {
	var sb strings.Builder
	sb.WriteString(s.base.Serialize())
	if s.fixedTitle {
		sb.WriteString("fixedTitle=true\n")
	}
	if s.homepage != "" {
		sb.WriteString("homepage=")
		sb.WriteString(s.homepage)
		sb.WriteByte('\n')
	}
	writeInt(&sb, "lastCheck", s.lastCheck)
	writeInt(&sb, "expires", s.hardExpiration)
	writeInt(&sb, "softExpiration", s.softExpiration)
	writeInt(&sb, "lastDownload", s.lastDownload)
	if s.downloadStatus != "" {
		sb.WriteString("downloadStatus=")
		sb.WriteString(s.downloadStatus)
		sb.WriteByte('\n')
	}
	writeInt(&sb, "lastSuccess", s.lastSuccess)
	writeInt(&sb, "errors", int64(s.errorCount))
	writeInt(&sb, "version", s.dataRevision)
	if s.requiredVersion != "" {
		sb.WriteString("requiredVersion=")
		sb.WriteString(s.requiredVersion)
		sb.WriteByte('\n')
	}
	writeInt(&sb, "downloadCount", int64(s.downloadCount))
	return sb.String()
}

func writeInt(sb *strings.Builder, key string, value int64) {
	if value == 0 {
		return
	}
	sb.WriteString(key)
	sb.WriteByte('=')
	sb.WriteString(strconv.FormatInt(value, 10))
	sb.WriteByte('\n')
}

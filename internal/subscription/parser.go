package subscription

import (
	"math"
	"strconv"
	"strings"

	"github.com/bnema/abpcore/internal/filter"
	"github.com/bnema/abpcore/internal/notifier"
	"github.com/bnema/abpcore/internal/text"
)

const (
	adblockHeader          = "[Adblock"
	adblockPlusExtraHeader = "Plus"

	// ErrorInvalidData is the error token set when the downloaded body does
	// not carry a valid list header.
	ErrorInvalidData = "synchronize_invalid_data"

	millisInHour = 60 * 60 * 1000
	millisInDay  = 24 * millisInHour

	maxHours = math.MaxInt64 / millisInHour
	maxDays  = math.MaxInt64 / millisInDay
)

// Parser consumes a downloaded filter-list body and splits it into header
// parameters and filter-text lines.
type Parser struct {
	filtersText     []string
	params          map[string]string
	requiredVersion string
	err             string
}

// NewParser creates a parser for one downloaded body.
func NewParser() *Parser {
	return &Parser{params: make(map[string]string)}
}

// Process consumes the body. It reports false when the first line is not a
// valid list header, in which case Error returns the error token.
func (p *Parser) Process(body string) bool {
	i := 0
	firstLine := true
	for {
		j := i
		for j < len(body) && body[j] != '\r' && body[j] != '\n' {
			j++
		}
		line := body[i:j]
		if firstLine {
			if !p.processFirstLine(line) {
				p.err = ErrorInvalidData
				return false
			}
			firstLine = false
		} else {
			p.processLine(line)
		}
		for j < len(body) && (body[j] == '\r' || body[j] == '\n') {
			j++
		}
		if j >= len(body) {
			break
		}
		i = j
	}
	return true
}

// Error returns the error token set by Process, or empty.
func (p *Parser) Error() string { return p.err }

// FiltersText returns the filter-text lines collected so far.
func (p *Parser) FiltersText() []string { return p.filtersText }

// RequiredVersion returns the minimal version found in the header line.
func (p *Parser) RequiredVersion() string { return p.requiredVersion }

// Redirect returns the "redirect" header param, or empty.
func (p *Parser) Redirect() string { return p.params["redirect"] }

// Homepage returns the "homepage" header param, or empty.
func (p *Parser) Homepage() string { return p.params["homepage"] }

// processFirstLine validates the "[Adblock Plus x.y]" header and captures
// the optional version.
func (p *Parser) processFirstLine(line string) bool {
	index := strings.Index(line, adblockHeader)
	if index < 0 {
		return false
	}

	current := line[index+len(adblockHeader):]
	sc := text.New(current)
	if sc.SkipWhiteSpace() && sc.SkipString(adblockPlusExtraHeader) {
		sc.SkipWhiteSpace()
	}
	versionStart := sc.Position() + 1
	var ch byte
	for {
		ch = sc.Next()
		if ch == 0 || (ch != '.' && !isDigit(ch)) {
			break
		}
	}
	if ch != 0 {
		sc.Back()
	}
	if ch != ']' {
		return false
	}
	if end := sc.Position() + 1; end > versionStart {
		p.requiredVersion = current[versionStart:end]
	}
	return true
}

// processLine records a "!key: value" header param, or collects the line as
// filter text.
func (p *Parser) processLine(line string) {
	if key, value, ok := parseParam(line); ok {
		p.params[key] = value
		return
	}
	if line != "" {
		p.filtersText = append(p.filtersText, line)
	}
}

// parseParam extracts the key and value of a "!key: value" line. Lines that
// do not fit the shape (including plain "!" comments) report false.
func parseParam(line string) (key, value string, ok bool) {
	if line == "" || line[0] != '!' {
		return "", "", false
	}
	foundColon := false
	beginParam := 0
	endParam := 0
	beginValue := 0
	for i := 1; i < len(line); i++ {
		switch line[i] {
		case ' ', '\t':
			if beginParam > 0 && !foundColon {
				endParam = i
			}
		case ':':
			foundColon = true
			endParam = i
		default:
			if foundColon {
				beginValue = i
			} else if beginParam == 0 {
				beginParam = i
			}
		}
		if beginValue > 0 {
			break
		}
	}
	if beginValue == 0 {
		return "", "", false
	}
	return strings.ToLower(line[beginParam:endParam]), line[beginValue:], true
}

// ParseExpires interprets an "Expires" header value: a number of days, or of
// hours when followed by a token starting with 'h'. Malformed or overflowing
// values yield 0.
func ParseExpires(expires string) int64 {
	sc := text.New(expires)
	numStart := 0
	numLen := 0
	for !sc.Done() {
		ch := sc.Next()
		if isDigit(ch) {
			if numLen == 0 {
				numStart = sc.Position()
			}
			numLen++
		} else if isSpace(ch) {
			if numLen > 0 {
				break
			}
		} else {
			if numLen > 0 {
				sc.Back()
			}
			break
		}
	}

	num, parseErr := strconv.ParseInt(expires[numStart:numStart+numLen], 10, 64)
	if parseErr != nil || num == 0 {
		return 0
	}

	isHour := false
	for !sc.Done() {
		ch := sc.Next()
		if isSpace(ch) {
			continue
		}
		if ch == 'h' {
			isHour = true
		}
		// The rest of the value is ignored.
		break
	}

	if (isHour && num > maxHours) || (!isHour && num > maxDays) {
		return 0
	}
	if isHour {
		return num * millisInHour
	}
	return num * millisInDay
}

// Finalize applies the parsed header and filters to a subscription and
// returns the expiration interval in milliseconds (0 when missing or
// malformed).
func (p *Parser) Finalize(sub *Downloadable) int64 {
	notifier.SubscriptionChange(notifier.SubscriptionBeforeFiltersReplaced, sub)

	if p.requiredVersion != "" {
		sub.SetRequiredVersion(p.requiredVersion)
	}

	if title, ok := p.params["title"]; ok {
		sub.SetTitle(title)
		sub.SetFixedTitle(true)
	} else {
		sub.SetFixedTitle(false)
	}

	var version int64
	if value, ok := p.params["version"]; ok {
		version, _ = strconv.ParseInt(value, 10, 64)
	}
	sub.SetDataRevision(version)

	var expires int64
	if value, ok := p.params["expires"]; ok {
		expires = ParseExpires(value)
	}

	filters := make([]filter.Filter, 0, len(p.filtersText))
	for _, line := range p.filtersText {
		if f := filter.FromText(line); f != nil {
			filters = append(filters, f)
		}
	}
	sub.SetFilters(filters)

	notifier.SubscriptionChange(notifier.SubscriptionFiltersReplaced, sub)
	return expires
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

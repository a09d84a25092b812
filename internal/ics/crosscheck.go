package ics

import (
	"bytes"
	"fmt"
	"slices"
	"time"

	goical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "icalkit/internal/log"
	"icalkit/pkg/caltime"
	"icalkit/pkg/recur"
)

// Check names the reference a Discrepancy was found against.
type Check string

const (
	CheckEvents Check = "events" // golang-ical VEVENT inventory
	CheckRRule  Check = "rrule"  // rrule-go expansion
)

// Discrepancy is a disagreement between icalkit and a reference library.
type Discrepancy struct {
	Check  Check
	UID    string
	Detail string
}

func (d Discrepancy) String() string {
	if d.UID == "" {
		return fmt.Sprintf("%s: %s", d.Check, d.Detail)
	}
	return fmt.Sprintf("%s: %s: %s", d.Check, d.UID, d.Detail)
}

// CrossCheck re-reads body with golang-ical and re-expands every RRULE
// with rrule-go, reporting where they disagree with events. samples bounds
// the occurrences compared per rule.
func CrossCheck(body []byte, events []ParsedEvent, samples int) ([]Discrepancy, error) {
	if samples <= 0 {
		samples = 50
	}
	out, err := checkEventInventory(body, events)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		if ev.RRule == nil {
			continue
		}
		out = append(out, checkRule(ev, samples)...)
	}
	appLog.Debug("cross-check completed", "events", len(events), "discrepancies", len(out))
	return out, nil
}

func checkEventInventory(body []byte, events []ParsedEvent) ([]Discrepancy, error) {
	cal, err := goical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("golang-ical: %w", err)
	}

	theirs := make(map[string]int)
	for _, ve := range cal.Events() {
		uid := ""
		if p := ve.GetProperty(goical.ComponentPropertyUniqueId); p != nil {
			uid = p.Value
		}
		theirs[uid]++
	}
	ours := make(map[string]int)
	for _, ev := range events {
		ours[ev.UID]++
	}

	var out []Discrepancy
	for _, uid := range sortedKeys(theirs, ours) {
		if theirs[uid] != ours[uid] {
			out = append(out, Discrepancy{
				Check:  CheckEvents,
				UID:    uid,
				Detail: fmt.Sprintf("golang-ical sees %d VEVENTs, icalkit kept %d", theirs[uid], ours[uid]),
			})
		}
	}
	return out, nil
}

func sortedKeys(maps ...map[string]int) []string {
	var keys []string
	for _, m := range maps {
		for k := range m {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}

// checkRule compares the first samples occurrences of the written rule,
// EXDATEs ignored, on the DTSTART wall clock.
func checkRule(ev ParsedEvent, samples int) []Discrepancy {
	text := ev.RRule.String()
	opt, err := rrule.StrToROption(text)
	if err != nil {
		return []Discrepancy{{Check: CheckRRule, UID: ev.UID, Detail: fmt.Sprintf("rrule-go rejects %q: %v", text, err)}}
	}
	opt.Dtstart = ev.wallStart.Wall()
	ref, err := rrule.NewRRule(*opt)
	if err != nil {
		return []Discrepancy{{Check: CheckRRule, UID: ev.UID, Detail: fmt.Sprintf("rrule-go rejects %q: %v", text, err)}}
	}

	var want []time.Time
	next := ref.Iterator()
	for len(want) < samples {
		t, ok := next()
		if !ok {
			break
		}
		want = append(want, t.UTC())
	}

	rule := ev.RRule.Anchor(ev.wallStart, recur.Bounds{})
	var got []time.Time
	for _, occ := range rule.NextN(caltime.Instant{}, samples) {
		got = append(got, occ.Wall())
	}

	for i := range max(len(want), len(got)) {
		switch {
		case i >= len(got):
			return []Discrepancy{{Check: CheckRRule, UID: ev.UID, Detail: fmt.Sprintf("%s: icalkit stops after %d occurrences, rrule-go continues with %s", text, i, stamp(want[i]))}}
		case i >= len(want):
			return []Discrepancy{{Check: CheckRRule, UID: ev.UID, Detail: fmt.Sprintf("%s: rrule-go stops after %d occurrences, icalkit continues with %s", text, i, stamp(got[i]))}}
		case !got[i].Equal(want[i]):
			return []Discrepancy{{Check: CheckRRule, UID: ev.UID, Detail: fmt.Sprintf("%s: occurrence %d is %s, rrule-go says %s", text, i+1, stamp(got[i]), stamp(want[i]))}}
		}
	}
	return nil
}

func stamp(t time.Time) string { return t.Format("20060102T150405") }

package ledger

import (
	"errors"
	"strings"
	"testing"

	"github.com/danmuck/fingerctl/internal/protocol/record"
	"github.com/danmuck/fingerctl/internal/testutil/testlog"
)

func rec(user, time string, second uint8) record.Record {
	return record.Record{User: user, Time: time, Second: second}
}

func TestAddKeepsSequenceAndSummarizesLast(t *testing.T) {
	testlog.Start(t)
	l := New()
	if err := l.Add(rec("02", "25/10/2021 09:31", 23)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := l.Add(rec("02", "25/10/2021 17:02", 5)); err != nil {
		t.Fatalf("add: %v", err)
	}

	recs := l.entries["02"]
	if len(recs) != 2 {
		t.Fatalf("unexpected records=%d", len(recs))
	}
	if recs[0].Time != "25/10/2021 09:31" || recs[1].Time != "25/10/2021 17:02" {
		t.Fatalf("sequence order lost: %+v", recs)
	}
	if l.Count() != 1 || l.Len() != 2 {
		t.Fatalf("unexpected count=%d len=%d", l.Count(), l.Len())
	}

	sum := l.Summarize()
	if got := sum["02"]; got != "25/10/2021 17:02:5" {
		t.Fatalf("unexpected summary value=%q", got)
	}
}

func TestAddAcceptsDuplicatesAndOutOfOrder(t *testing.T) {
	testlog.Start(t)
	l := New()
	_ = l.Add(rec("03", "26/10/2021 08:00", 1))
	_ = l.Add(rec("03", "25/10/2021 08:00", 1))
	_ = l.Add(rec("03", "25/10/2021 08:00", 1))
	if got := len(l.entries["03"]); got != 3 {
		t.Fatalf("expected 3 records, got %d", got)
	}
	if got := l.Summarize()["03"]; got != "25/10/2021 08:00:1" {
		t.Fatalf("summary must follow append order, got %q", got)
	}
}

func TestSummarizeSortsByCode(t *testing.T) {
	testlog.Start(t)
	l := New()
	for _, code := range []string{"10", "02", "07", "02"} {
		_ = l.Add(rec(code, "01/01/2022 08:00", 0))
	}

	order := l.Order()
	if strings.Join(order, ",") != "10,02,07" {
		t.Fatalf("first-seen order lost: %v", order)
	}

	entries := l.Entries()
	got := make([]string, 0, len(entries))
	for _, e := range entries {
		got = append(got, e.Code)
	}
	if strings.Join(got, ",") != "02,07,10" {
		t.Fatalf("unexpected summary order: %v", got)
	}
	if len(l.Summarize()) != 3 {
		t.Fatalf("unexpected summary size=%d", len(l.Summarize()))
	}
}

func TestNamesResolveDisplayKeys(t *testing.T) {
	testlog.Start(t)
	names := map[string]string{"02": "Anna", "07": ""}
	l := WithNames(names)
	_ = l.Add(rec("02", "01/01/2022 08:00", 9))
	_ = l.Add(rec("07", "01/01/2022 08:05", 1))
	_ = l.Add(rec("11", "01/01/2022 08:10", 2))

	sum := l.Summarize()
	if sum["Anna"] != "01/01/2022 08:00:9" {
		t.Fatalf("named user missing: %v", sum)
	}
	if sum["07"] != "01/01/2022 08:05:1" {
		t.Fatalf("blank name must fall back to code: %v", sum)
	}
	if sum["11"] != "01/01/2022 08:10:2" {
		t.Fatalf("unknown code must fall back to code: %v", sum)
	}

	names["02"] = "Changed"
	_ = l.Add(rec("02", "01/01/2022 09:00", 0))
	if _, ok := l.Summarize()["Changed"]; ok {
		t.Fatalf("ledger must own its name table")
	}
}

func TestAddRejectsUndecodedRecords(t *testing.T) {
	testlog.Start(t)
	l := New()
	if err := l.Add(record.Record{Empty: true}); !errors.Is(err, ErrNotDecoded) {
		t.Fatalf("expected ErrNotDecoded for empty record, got %v", err)
	}
	if err := l.Add(record.Record{Carry: []byte{1}}); !errors.Is(err, ErrNotDecoded) {
		t.Fatalf("expected ErrNotDecoded for carry record, got %v", err)
	}
	if l.Count() != 0 {
		t.Fatalf("rejected records must not create users")
	}
}

func TestLedgersDoNotShareState(t *testing.T) {
	testlog.Start(t)
	a := New()
	b := New()
	_ = a.Add(rec("01", "01/01/2022 08:00", 0))
	if b.Count() != 0 || len(b.Order()) != 0 {
		t.Fatalf("ledger state leaked across instances")
	}
}

func TestStringReport(t *testing.T) {
	testlog.Start(t)
	l := WithNames(map[string]string{"02": "Anna"})
	_ = l.Add(rec("05", "01/01/2022 08:00", 0))
	_ = l.Add(rec("02", "01/01/2022 08:01", 0))
	_ = l.Add(rec("02", "01/01/2022 17:30", 0))

	want := "--------\nid : count\n--------\n" +
		"Anna : 2, last log = 01/01/2022 17:30\n" +
		"05 : 1, last log = 01/01/2022 08:00"
	if got := l.String(); got != want {
		t.Fatalf("unexpected report:\n%s\nwant:\n%s", got, want)
	}
}

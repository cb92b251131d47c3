package redis

import (
	"reflect"
	"testing"
)

func TestParseCounts(t *testing.T) {
	prefix := "guard:viol:g1:"
	keys := []string{
		prefix + "duplicate_message",
		prefix + "mention_spam",
		prefix + "link_spam",
	}
	vals := []interface{}{"12", nil, "3"}

	got := parseCounts(prefix, keys, vals)
	want := map[string]int64{"duplicate_message": 12, "link_spam": 3}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("counts = %v, want %v", got, want)
	}
}

func TestParseCountsShortValueSlice(t *testing.T) {
	prefix := "guard:viol:g1:"
	keys := []string{prefix + "a", prefix + "b"}

	got := parseCounts(prefix, keys, []interface{}{"7"})
	if len(got) != 1 || got["a"] != 7 {
		t.Fatalf("counts = %v", got)
	}
}

func TestParseCountsSkipsNonStrings(t *testing.T) {
	prefix := "guard:viol:g1:"
	got := parseCounts(prefix, []string{prefix + "a"}, []interface{}{42})
	if len(got) != 0 {
		t.Fatalf("counts = %v, want empty", got)
	}
}

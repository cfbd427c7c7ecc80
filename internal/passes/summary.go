package passes

import "fmt"

// Summary renders a published count for display.
func Summary(count *int) string {
	return DefaultOptions().Summary(count)
}

func (o Options) Summary(count *int) string {
	o = o.withDefaults()
	switch {
	case count == nil:
		return "Loading…"
	case *count == 0:
		return "No passes"
	case *count == 1:
		return "1 pass"
	case *count > o.Max:
		return fmt.Sprintf("Many passes (%d+)", o.Max)
	}
	return fmt.Sprintf("%d passes", *count)
}

package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

type Bar struct {
	*progressbar.ProgressBar
}

func NewBar(w io.Writer, max int64, description string) *Bar {
	bar := progressbar.NewOptions64(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)

	return &Bar{ProgressBar: bar}
}

func (b *Bar) Increment() {
	b.Add(1)
}

// Step moves the bar to done and relabels it.
func (b *Bar) Step(label string, done int) {
	if b.ProgressBar == nil {
		return
	}
	b.Describe(label)
	b.Set(done)
}

func (b *Bar) Finish() {
	if b.ProgressBar == nil {
		return
	}
	b.ProgressBar.Finish()
}

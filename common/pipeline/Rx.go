package pipeline

import (
	"regexp"

	log "github.com/sirupsen/logrus"

	"crashsentry/common/format/report"
)

// Regular Expression Descent: the signature is the first crashing frame that
// matches none of the expressions.
type Rx struct {
	Regexps []*regexp.Regexp
}

func (r *Rx) Process(rep *report.Report) bool {
	if len(r.Regexps) == 0 {
		// to next stage
		return false
	}

	frames := rep.CrashingThread.Frames
	if len(frames) == 0 {
		// go to next stage
		return false
	}

	for i := range frames {
		isMatch := false
		for _, rx := range r.Regexps {
			if rx.MatchString(frames[i].Function) {
				isMatch = true
				break
			}
		}
		if !isMatch {
			rep.Signature = frames[i].Function
			rep.Source = source(&frames[i])
			return true
		}
	}

	return true
}

func NewRx(regs []string) *Rx {
	var rxSlice []*regexp.Regexp
	for _, reg := range regs {
		rx, err := regexp.Compile(reg)
		log.WithField("regexp", reg).
			Debug("Rx stage: compile regexp")
		if err == nil {
			rxSlice = append(rxSlice, rx)
		} else {
			log.WithError(err).
				Error("Can't compile regular expression")
		}
	}

	return &Rx{
		Regexps: rxSlice,
	}
}

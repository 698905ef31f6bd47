package report

import (
	"io"
	"os"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

const sampleDump = `goroutine 7 [running]:
main.(*worker).run(0xc000010000, {0x4b2a40, 0x1})
	/src/app/worker.go:42 +0x1d
main.main()
	/src/app/main.go:10 +0x25

goroutine 9 [chan receive, 2 minutes]:
main.wait(...)
	/src/app/wait.go:5
created by main.main in goroutine 1
	/src/app/main.go:8 +0x3a
`

type memorySaver struct {
	saved []*Report
	err   error
}

func (m *memorySaver) Save(r *Report) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.saved = append(m.saved, r)
	return r.Id, nil
}

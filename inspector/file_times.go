package inspector

import (
	"time"

	"github.com/djherbis/times"
)

type fileTimes struct {
	ModTime    time.Time
	AccessTime time.Time
	ChangeTime time.Time
	BirthTime  time.Time
}

func statTimes(path string) (fileTimes, error) {
	ts, err := times.Stat(path)
	if err != nil {
		return fileTimes{}, err
	}
	result := fileTimes{
		ModTime:    ts.ModTime(),
		AccessTime: ts.AccessTime(),
	}
	if ts.HasChangeTime() {
		result.ChangeTime = ts.ChangeTime()
	}
	if ts.HasBirthTime() {
		result.BirthTime = ts.BirthTime()
	}
	return result, nil
}

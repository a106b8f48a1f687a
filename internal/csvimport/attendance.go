package csvimport

import (
	"errors"
	"io"
	"strings"
	"time"
)

// Header aliases, most specific first.
var (
	nameAliases       = []string{"Name", "Attendee Name", "Full Name"}
	emailAliases      = []string{"Email", "Email Address", "E-mail"}
	attendedAliases   = []string{"Attended"}
	attendanceAliases = []string{"Attendance (%)", "Attendance %", "attendance_percent", "Attendance"}
	focusAliases      = []string{"Focus (%)", "Focus %", "focus_percent", "Focus"}
	minutesAliases    = []string{"Attendance Minutes", "attendance_minutes", "Minutes"}
	joinAliases       = []string{"Join Time", "join_time", "Joined At"}
	exitAliases       = []string{"Exit Time", "exit_time", "Left At"}
	locationAliases   = []string{"Location", "City"}
)

// AttendeeRow is one canonical attendance record.
type AttendeeRow struct {
	Name              string
	Email             string
	Attended          bool
	AttendancePercent float64
	FocusPercent      float64
	AttendanceMinutes int
	JoinTime          *time.Time
	ExitTime          *time.Time
	Location          string
}

// ParseAttendance reads an attendance export. Rows with neither a name nor an
// email are skipped and counted in dropped. No deduplication happens here.
func ParseAttendance(r io.Reader) (rows []AttendeeRow, dropped int, err error) {
	t, err := newTable(r)
	if err != nil {
		return nil, 0, err
	}
	emailIdx, err := t.require("email", emailAliases)
	if err != nil {
		return nil, 0, err
	}
	var (
		nameIdx       = t.find(nameAliases)
		attendedIdx   = t.find(attendedAliases)
		attendanceIdx = t.find(attendanceAliases)
		focusIdx      = t.find(focusAliases)
		minutesIdx    = t.find(minutesAliases)
		joinIdx       = t.find(joinAliases)
		exitIdx       = t.find(exitAliases)
		locationIdx   = t.find(locationAliases)
	)

	for {
		record, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, err
		}

		name := getValue(record, nameIdx)
		email := NormalizeEmail(getValue(record, emailIdx))
		if name == "" && email == "" {
			dropped++
			continue
		}
		if name == "" {
			name = localPart(email)
		}

		row := AttendeeRow{
			Name:              name,
			Email:             email,
			AttendancePercent: parsePercent(getValue(record, attendanceIdx)),
			FocusPercent:      parsePercent(getValue(record, focusIdx)),
			AttendanceMinutes: int(ParseNumber(getValue(record, minutesIdx))),
			JoinTime:          ParseTime(getValue(record, joinIdx)),
			ExitTime:          ParseTime(getValue(record, exitIdx)),
			Location:          getValue(record, locationIdx),
		}
		if v := getValue(record, attendedIdx); v != "" {
			row.Attended = parseBool(v)
		} else {
			row.Attended = row.AttendancePercent > 0 || row.AttendanceMinutes > 0
		}
		rows = append(rows, row)
	}
	return rows, dropped, nil
}

func localPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}

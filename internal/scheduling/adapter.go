// Package scheduling implements the cross-kind conflict detection and
// resource validation engine. One generic detector is parameterised by a
// per-kind adapter table; adding a schedule kind means registering one
// adapter, not duplicating the algorithm.
package scheduling

import (
	"github.com/akademik-fk/curriculum-api/internal/models"
)

// Dimensions declares which resource axes a kind participates in during
// cross-kind comparison, and whether its lecturers occupy seats for
// capacity purposes.
type Dimensions struct {
	Lecturer       bool
	Room           bool
	SmallGroup     bool
	LargeGroup     bool
	SeatsLecturers bool
}

// kindDimensions is the adapter registry. Praktikum lecturers are
// attached through a join table and seat in the room, but the kind is
// compared on room and group only. Agenda Khusus contributes nothing
// beyond its room. Persamaan Persepsi has no student group and may have
// no room at all when held online.
var kindDimensions = map[models.Kind]Dimensions{
	models.KindCSR:               {Lecturer: true, Room: true, SmallGroup: true, SeatsLecturers: true},
	models.KindPBL:               {Lecturer: true, Room: true, SmallGroup: true, SeatsLecturers: true},
	models.KindKuliahBesar:       {Lecturer: true, Room: true, LargeGroup: true, SeatsLecturers: true},
	models.KindPraktikum:         {Room: true, SmallGroup: true, SeatsLecturers: true},
	models.KindJurnalReading:     {Lecturer: true, Room: true, SmallGroup: true, SeatsLecturers: true},
	models.KindAgendaKhusus:      {Room: true},
	models.KindNonBlokNonCSR:     {Lecturer: true, Room: true, SmallGroup: true, LargeGroup: true, SeatsLecturers: true},
	models.KindPersamaanPersepsi: {Lecturer: true, Room: true, SeatsLecturers: true},
	models.KindSeminarPleno:      {Room: true, LargeGroup: true},
}

// DimensionsFor returns the registered dimensions for a kind.
func DimensionsFor(kind models.Kind) Dimensions {
	return kindDimensions[kind]
}

// Adapt projects a stored session row plus its active lecturer roster
// into the normalized entry the detector compares on. It is a pure
// mapping: dimensions the kind does not participate in are masked out so
// the intersection logic never has to special-case kinds.
func Adapt(kind models.Kind, row models.SessionRow, roster []models.LecturerAssignment) models.Entry {
	dims := DimensionsFor(kind)

	res := models.ResourceSet{}
	usesRoom := row.UsesRoom && dims.Room && row.RoomID != nil
	if usesRoom {
		res.RoomID = *row.RoomID
		if row.RoomName != nil {
			res.RoomName = *row.RoomName
		}
	}

	// Kinds whose lecturers only seat in the room (Praktikum) still need
	// the roster on the entry so capacity counts them; the lecturer
	// comparison dimension is gated separately in intersect.
	if dims.Lecturer || dims.SeatsLecturers {
		res.LecturerNames = make(map[string]string, len(roster))
		for _, a := range roster {
			if !a.Active() {
				continue
			}
			res.LecturerIDs = append(res.LecturerIDs, a.LecturerID)
			res.LecturerNames[a.LecturerID] = a.LecturerName
		}
	}

	if dims.SmallGroup && row.SmallGroupID != nil {
		res.SmallGroupID = *row.SmallGroupID
		if row.SmallGroupName != nil {
			res.GroupName = *row.SmallGroupName
		}
		if row.SmallGroupParentID != nil {
			res.SmallGroupParentID = *row.SmallGroupParentID
		}
	}

	if dims.LargeGroup && row.LargeGroupID != nil && res.SmallGroupID == "" {
		res.LargeGroupID = *row.LargeGroupID
		if row.LargeGroupName != nil {
			res.GroupName = *row.LargeGroupName
		}
	}

	return models.Entry{
		ID:        row.ID,
		Kind:      kind,
		TermID:    row.TermID,
		Window:    row.Window(),
		Resources: res,
		UsesRoom:  usesRoom,
		Title:     row.Title,
	}
}

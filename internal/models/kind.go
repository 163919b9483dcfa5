package models

import "strings"

// Kind is the closed set of schedule categories. Every stored session
// carries an explicit kind tag; behaviour never depends on which
// foreign-key columns happen to be populated.
type Kind string

const (
	KindCSR               Kind = "CSR"
	KindPBL               Kind = "PBL"
	KindKuliahBesar       Kind = "KULIAH_BESAR"
	KindPraktikum         Kind = "PRAKTIKUM"
	KindJurnalReading     Kind = "JURNAL_READING"
	KindAgendaKhusus      Kind = "AGENDA_KHUSUS"
	KindNonBlokNonCSR     Kind = "NON_BLOK_NON_CSR"
	KindPersamaanPersepsi Kind = "PERSAMAAN_PERSEPSI"
	KindSeminarPleno      Kind = "SEMINAR_PLENO"
)

// Kinds returns every kind in declaration order. The conflict detector
// scans the candidate's own kind first, then the rest in this order.
func Kinds() []Kind {
	return []Kind{
		KindCSR,
		KindPBL,
		KindKuliahBesar,
		KindPraktikum,
		KindJurnalReading,
		KindAgendaKhusus,
		KindNonBlokNonCSR,
		KindPersamaanPersepsi,
		KindSeminarPleno,
	}
}

// ParseKind parses a kind from its canonical form or its URL slug
// ("kuliah-besar" and "KULIAH_BESAR" both resolve to KindKuliahBesar).
func ParseKind(raw string) (Kind, bool) {
	k := Kind(strings.ToUpper(strings.ReplaceAll(raw, "-", "_")))
	return k, k.Valid()
}

// Slug returns the lowercase hyphenated form used in URL paths.
func (k Kind) Slug() string {
	return strings.ToLower(strings.ReplaceAll(string(k), "_", "-"))
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Label returns the human-readable session name used in conflict messages.
func (k Kind) Label() string {
	switch k {
	case KindCSR:
		return "CSR"
	case KindPBL:
		return "PBL"
	case KindKuliahBesar:
		return "Kuliah Besar"
	case KindPraktikum:
		return "Praktikum"
	case KindJurnalReading:
		return "Jurnal Reading"
	case KindAgendaKhusus:
		return "Agenda Khusus"
	case KindNonBlokNonCSR:
		return "Non Blok Non CSR"
	case KindPersamaanPersepsi:
		return "Persamaan Persepsi"
	case KindSeminarPleno:
		return "Seminar Pleno"
	default:
		return string(k)
	}
}

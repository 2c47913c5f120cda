package calendar

// Exchange closure days (weekday holidays) per year, MM-DD. Weekend closures
// are omitted: the weekend rule already excludes them. Source: SSE/SZSE
// closure announcements.
var holidays = map[int][]string{
	2004: {"01-01", "01-19", "01-20", "01-21", "01-22", "01-23", "01-26", "01-27", "01-28", "05-03", "05-04", "05-05", "05-06", "05-07", "10-01", "10-04", "10-05", "10-06", "10-07"},
	2005: {"01-03", "02-07", "02-08", "02-09", "02-10", "02-11", "05-02", "05-03", "05-04", "05-05", "05-06", "10-03", "10-04", "10-05", "10-06", "10-07"},
	2006: {"01-02", "01-03", "01-26", "01-27", "01-30", "01-31", "02-01", "05-01", "05-02", "05-03", "05-04", "05-05", "10-02", "10-03", "10-04", "10-05", "10-06"},
	2007: {"01-01", "01-02", "01-03", "02-19", "02-20", "02-21", "02-22", "02-23", "05-01", "05-02", "05-03", "05-04", "05-07", "10-01", "10-02", "10-03", "10-04", "10-05"},
	2008: {"01-01", "02-06", "02-07", "02-08", "02-11", "02-12", "04-04", "05-01", "05-02", "06-09", "09-15", "09-29", "09-30", "10-01", "10-02", "10-03"},
	2009: {"01-01", "01-02", "01-26", "01-27", "01-28", "01-29", "01-30", "04-06", "05-01", "05-28", "05-29", "10-01", "10-02", "10-05", "10-06", "10-07", "10-08"},
	2010: {"01-01", "02-15", "02-16", "02-17", "02-18", "02-19", "04-05", "05-03", "06-14", "06-15", "06-16", "09-22", "09-23", "09-24", "10-01", "10-04", "10-05", "10-06", "10-07"},
	2011: {"01-03", "02-02", "02-03", "02-04", "02-07", "02-08", "04-04", "04-05", "05-02", "06-06", "09-12", "10-03", "10-04", "10-05", "10-06", "10-07"},
	2012: {"01-02", "01-03", "01-23", "01-24", "01-25", "01-26", "01-27", "04-02", "04-03", "04-04", "04-30", "05-01", "06-22", "10-01", "10-02", "10-03", "10-04", "10-05"},
	2013: {"01-01", "01-02", "01-03", "02-11", "02-12", "02-13", "02-14", "02-15", "04-04", "04-05", "04-29", "04-30", "05-01", "06-10", "06-11", "06-12", "09-19", "09-20", "10-01", "10-02", "10-03", "10-04", "10-07"},
	2014: {"01-01", "01-31", "02-03", "02-04", "02-05", "02-06", "04-07", "05-01", "05-02", "06-02", "09-08", "10-01", "10-02", "10-03", "10-06", "10-07"},
	2015: {"01-01", "01-02", "02-18", "02-19", "02-20", "02-23", "02-24", "04-06", "05-01", "06-22", "09-03", "09-04", "10-01", "10-02", "10-05", "10-06", "10-07"},
	2016: {"01-01", "02-08", "02-09", "02-10", "02-11", "02-12", "04-04", "05-02", "06-09", "06-10", "09-15", "09-16", "10-03", "10-04", "10-05", "10-06", "10-07"},
	2017: {"01-02", "01-27", "01-30", "01-31", "02-01", "02-02", "04-03", "04-04", "05-01", "05-29", "05-30", "10-02", "10-03", "10-04", "10-05", "10-06"},
	2018: {"01-01", "02-15", "02-16", "02-19", "02-20", "02-21", "04-05", "04-06", "04-30", "05-01", "06-18", "09-24", "10-01", "10-02", "10-03", "10-04", "10-05", "12-31"},
	2019: {"01-01", "02-04", "02-05", "02-06", "02-07", "02-08", "04-05", "05-01", "05-02", "05-03", "06-07", "09-13", "10-01", "10-02", "10-03", "10-04", "10-07"},
	2020: {"01-01", "01-24", "01-27", "01-28", "01-29", "01-30", "01-31", "04-06", "05-01", "05-04", "05-05", "06-25", "06-26", "10-01", "10-02", "10-05", "10-06", "10-07", "10-08"},
	2021: {"01-01", "02-11", "02-12", "02-15", "02-16", "02-17", "04-05", "05-03", "05-04", "05-05", "06-14", "09-20", "09-21", "10-01", "10-04", "10-05", "10-06", "10-07"},
	2022: {"01-03", "01-31", "02-01", "02-02", "02-03", "02-04", "04-04", "04-05", "05-02", "05-03", "05-04", "06-03", "09-12", "10-03", "10-04", "10-05", "10-06", "10-07"},
	2023: {"01-02", "01-23", "01-24", "01-25", "01-26", "01-27", "04-05", "05-01", "05-02", "05-03", "06-22", "06-23", "09-29", "10-02", "10-03", "10-04", "10-05", "10-06"},
	2024: {"01-01", "02-09", "02-12", "02-13", "02-14", "02-15", "02-16", "04-04", "04-05", "05-01", "05-02", "05-03", "06-10", "09-16", "09-17", "10-01", "10-02", "10-03", "10-04", "10-07"},
	2025: {"01-01", "01-28", "01-29", "01-30", "01-31", "02-03", "02-04", "04-04", "05-01", "05-02", "05-05", "06-02", "10-01", "10-02", "10-03", "10-06", "10-07", "10-08"},
	2026: {"01-01", "01-02", "02-16", "02-17", "02-18", "02-19", "02-20", "04-06", "05-01", "05-04", "05-05", "06-19", "09-25", "10-01", "10-02", "10-05", "10-06", "10-07"},
}

// pre-compute for fast lookup
var holidaySet map[string]bool

func init() {
	holidaySet = make(map[string]bool, len(holidays)*18)
	for year, days := range holidays {
		for _, md := range days {
			holidaySet[itoa4(year)+"-"+md] = true
		}
	}
}

func itoa4(year int) string {
	bs := [4]byte{}
	for i := 3; i >= 0; i-- {
		bs[i] = byte('0' + year%10)
		year /= 10
	}
	return string(bs[:])
}

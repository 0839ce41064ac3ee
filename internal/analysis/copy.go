package analysis

import (
	"fmt"
	"unicode"

	"golang.org/x/text/language"

	"walkability/internal/types"
)

var (
	supportedLanguages = []language.Tag{language.Indonesian, language.English}
	languageMatcher    = language.NewMatcher(supportedLanguages)
	englishBase, _     = language.English.Base()
)

// ResolveLanguage picks the copy language. An explicit preference (a BCP 47
// tag or an Accept-Language value) wins when it matches a supported
// language. Otherwise Indonesian is used unless the origin label contains
// letters outside the Latin script.
func ResolveLanguage(preferred, originLabel string) language.Tag {
	if preferred != "" {
		if tags, _, err := language.ParseAcceptLanguage(preferred); err == nil && len(tags) > 0 {
			if _, idx, conf := languageMatcher.Match(tags...); conf != language.No {
				return supportedLanguages[idx]
			}
		}
	}
	if hasNonLatinLetters(originLabel) {
		return language.English
	}
	return language.Indonesian
}

func hasNonLatinLetters(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r) {
			return true
		}
	}
	return false
}

func isEnglish(tag language.Tag) bool {
	base, _ := tag.Base()
	return base == englishBase
}

type copyText struct {
	title       string
	description string
}

type copyTable map[types.Category]map[types.Tone]copyText

func cardCopy(lang language.Tag, c types.Category, tone types.Tone) copyText {
	table := cardCopyID
	if isEnglish(lang) {
		table = cardCopyEN
	}
	return table[c][tone]
}

var cardCopyID = copyTable{
	types.CategoryAccessibility: {
		types.TonePositive: {"Ramah kursi roda", "Jalur landai dan bebas tangga di sebagian besar rute, nyaman untuk kursi roda dan kereta bayi."},
		types.ToneNeutral:  {"Aksesibilitas cukup", "Sebagian besar rute dapat diakses, namun ada beberapa tanjakan atau tepi trotoar tanpa ramp."},
		types.ToneWarning:  {"Aksesibilitas terbatas", "Beberapa ruas memiliki tangga atau tepi tinggi tanpa ramp. Pengguna kursi roda perlu berhati-hati."},
		types.ToneDanger:   {"Sulit diakses", "Banyak hambatan fisik seperti tangga dan tepi tinggi. Rute ini sulit untuk kursi roda."},
	},
	types.CategorySidewalk: {
		types.TonePositive: {"Trotoar nyaman", "Trotoar lebar dan rata tersedia di sebagian besar rute."},
		types.ToneNeutral:  {"Trotoar memadai", "Trotoar tersedia namun di beberapa titik menyempit atau permukaannya kurang rata."},
		types.ToneWarning:  {"Trotoar terputus", "Trotoar sering terputus atau rusak sehingga pejalan kaki harus turun ke badan jalan."},
		types.ToneDanger:   {"Minim trotoar", "Sebagian besar rute tidak memiliki trotoar yang layak. Berjalan di tepi jalan raya."},
	},
	types.CategoryLighting: {
		types.TonePositive: {"Penerangan baik", "Lampu jalan tersebar merata di sepanjang rute."},
		types.ToneNeutral:  {"Penerangan cukup", "Lampu jalan ada di sebagian besar rute, beberapa ruas tampak lebih gelap."},
		types.ToneWarning:  {"Penerangan kurang", "Banyak ruas dengan lampu jalan jarang. Pertimbangkan rute lain pada malam hari."},
		types.ToneDanger:   {"Rute gelap", "Hampir tidak ada lampu jalan. Hindari rute ini setelah gelap."},
	},
	types.CategoryCrossing: {
		types.TonePositive: {"Penyeberangan aman", "Zebra cross dan lampu penyeberangan tersedia di titik-titik penting."},
		types.ToneNeutral:  {"Penyeberangan cukup", "Sebagian besar penyeberangan bertanda, namun beberapa tanpa lampu pengatur."},
		types.ToneWarning:  {"Penyeberangan kurang", "Beberapa titik penyeberangan tidak bertanda. Perhatikan lalu lintas sebelum menyeberang."},
		types.ToneDanger:   {"Penyeberangan berbahaya", "Rute melewati jalan ramai tanpa penyeberangan yang jelas."},
	},
	types.CategoryObstruction: {
		types.TonePositive: {"Jalur bebas hambatan", "Trotoar relatif bersih dari kendaraan parkir, pedagang, dan benda lain."},
		types.ToneNeutral:  {"Sedikit hambatan", "Ada beberapa hambatan seperti kendaraan parkir atau pedagang, namun masih bisa dilalui."},
		types.ToneWarning:  {"Banyak hambatan", "Trotoar sering terhalang kendaraan parkir atau lapak pedagang."},
		types.ToneDanger:   {"Jalur terhalang", "Trotoar banyak tertutup hambatan sehingga pejalan kaki terpaksa turun ke jalan."},
	},
	types.CategoryTraffic: {
		types.TonePositive: {"Lalu lintas tenang", "Arus kendaraan di sekitar rute terasa aman bagi pejalan kaki."},
		types.ToneNeutral:  {"Lalu lintas sedang", "Beberapa ruas cukup ramai, tetap waspada di persimpangan."},
		types.ToneWarning:  {"Lalu lintas padat", "Rute melewati jalan dengan kendaraan cepat atau padat. Berjalan dengan hati-hati."},
		types.ToneDanger:   {"Lalu lintas berbahaya", "Pejalan kaki berbagi ruang dengan lalu lintas cepat di banyak titik."},
	},
	types.CategoryWayfinding: {
		types.TonePositive: {"Mudah diikuti", "Rambu dan penanda jalan jelas sehingga rute mudah diikuti."},
		types.ToneNeutral:  {"Penunjuk arah cukup", "Ada beberapa rambu, namun sebagian persimpangan kurang jelas."},
		types.ToneWarning:  {"Penunjuk arah minim", "Rambu jarang ditemui. Gunakan peta untuk memastikan arah."},
		types.ToneDanger:   {"Mudah tersesat", "Hampir tidak ada rambu atau penanda. Rute sulit diikuti tanpa navigasi."},
	},
}

var cardCopyEN = copyTable{
	types.CategoryAccessibility: {
		types.TonePositive: {"Wheelchair friendly", "Step-free paths and ramps along most of the route suit wheelchairs and strollers."},
		types.ToneNeutral:  {"Fair accessibility", "Most of the route is accessible, with a few slopes or curbs without ramps."},
		types.ToneWarning:  {"Limited accessibility", "Some stretches have steps or high curbs without ramps. Wheelchair users should take care."},
		types.ToneDanger:   {"Hard to access", "Frequent steps and high curbs make this route difficult for wheelchairs."},
	},
	types.CategorySidewalk: {
		types.TonePositive: {"Comfortable sidewalks", "Wide, even sidewalks cover most of the route."},
		types.ToneNeutral:  {"Adequate sidewalks", "Sidewalks are present but narrow or uneven in places."},
		types.ToneWarning:  {"Broken sidewalks", "Sidewalks are often interrupted or damaged, forcing you onto the road."},
		types.ToneDanger:   {"Few sidewalks", "Most of the route has no usable sidewalk. Expect to walk at the road edge."},
	},
	types.CategoryLighting: {
		types.TonePositive: {"Well lit", "Street lights are evenly spread along the route."},
		types.ToneNeutral:  {"Moderately lit", "Most of the route has street lights, though some stretches look darker."},
		types.ToneWarning:  {"Poorly lit", "Many stretches have sparse lighting. Consider another route at night."},
		types.ToneDanger:   {"Dark route", "There is almost no street lighting. Avoid this route after dark."},
	},
	types.CategoryCrossing: {
		types.TonePositive: {"Safe crossings", "Marked crossings and pedestrian signals are available where they matter."},
		types.ToneNeutral:  {"Fair crossings", "Most crossings are marked, but some have no signals."},
		types.ToneWarning:  {"Few safe crossings", "Several crossings are unmarked. Check traffic carefully before crossing."},
		types.ToneDanger:   {"Dangerous crossings", "The route crosses busy roads with no clear crossing points."},
	},
	types.CategoryObstruction: {
		types.TonePositive: {"Clear path", "Sidewalks are mostly free of parked vehicles, vendors and clutter."},
		types.ToneNeutral:  {"Minor obstructions", "Some parked vehicles or vendors narrow the path, but it stays passable."},
		types.ToneWarning:  {"Frequent obstructions", "Parked vehicles and stalls often block the sidewalk."},
		types.ToneDanger:   {"Blocked path", "Obstructions cover much of the sidewalk, pushing pedestrians into the road."},
	},
	types.CategoryTraffic: {
		types.TonePositive: {"Calm traffic", "Vehicle traffic around the route feels safe for pedestrians."},
		types.ToneNeutral:  {"Moderate traffic", "Some stretches are busy. Stay alert at intersections."},
		types.ToneWarning:  {"Heavy traffic", "The route follows fast or busy roads. Walk with care."},
		types.ToneDanger:   {"Hazardous traffic", "Pedestrians share space with fast traffic at many points."},
	},
	types.CategoryWayfinding: {
		types.TonePositive: {"Easy to follow", "Clear signs and landmarks make the route easy to follow."},
		types.ToneNeutral:  {"Some signage", "There are some signs, but a few intersections are unclear."},
		types.ToneWarning:  {"Sparse signage", "Signs are rare. Keep a map handy to confirm your way."},
		types.ToneDanger:   {"Easy to get lost", "There are almost no signs or landmarks. Navigation is needed."},
	},
}

func lowCoverageMessage(lang language.Tag, coveragePercent int) string {
	uncovered := 100 - coveragePercent
	if isEnglish(lang) {
		return fmt.Sprintf("%d%% of the route has no street-level imagery, so the analysis may be incomplete.", uncovered)
	}
	return fmt.Sprintf("%d%% rute tidak memiliki citra jalan, sehingga analisis mungkin tidak lengkap.", uncovered)
}

func staleImageryMessage(lang language.Tag, stalePercent int, staleAgeYears float64) string {
	if isEnglish(lang) {
		return fmt.Sprintf("%d%% of the imagery is more than %g years old and may not reflect current conditions.", stalePercent, staleAgeYears)
	}
	return fmt.Sprintf("%d%% citra berusia lebih dari %g tahun dan mungkin tidak mencerminkan kondisi terkini.", stalePercent, staleAgeYears)
}

func partialFailureMessage(lang language.Tag, degraded, total int) string {
	if isEnglish(lang) {
		return fmt.Sprintf("Imagery lookup failed for %d of %d points; those points were treated as uncovered.", degraded, total)
	}
	return fmt.Sprintf("Pemeriksaan citra gagal untuk %d dari %d titik; titik tersebut dianggap tanpa citra.", degraded, total)
}

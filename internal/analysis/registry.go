package analysis

// registryCodes maps KRX stock codes to DART corporate registry codes for
// frequently surfaced large caps. Models often hallucinate the 8-digit
// registry code, so a known-good mapping beats whatever they return.
var registryCodes = map[string]string{
	"005930": "00126380", // 삼성전자
	"000660": "00164779", // SK하이닉스
	"373220": "00401731", // LG에너지솔루션
	"207940": "00877059", // 삼성바이오로직스
	"005380": "00164742", // 현대차
	"000270": "00106641", // 기아
	"068270": "00421045", // 셀트리온
	"005490": "00155319", // POSCO홀딩스
	"035420": "00266961", // NAVER
	"035720": "00258801", // 카카오
	"051910": "00356361", // LG화학
	"006400": "00126362", // 삼성SDI
	"012330": "00164788", // 현대모비스
	"028260": "00149655", // 삼성물산
	"105560": "00547583", // KB금융
	"055550": "00382199", // 신한지주
	"066570": "00401058", // LG전자
	"003670": "00155276", // 포스코퓨처엠
	"096770": "00631518", // SK이노베이션
	"034730": "00631424", // SK
}

// lookupRegistryCode returns the DART registry code for a stock code, or ""
// when the company is not in the static table.
func lookupRegistryCode(stockCode string) string {
	return registryCodes[stockCode]
}

package intake

import (
	"github.com/connectingdocs/match-engine/internal/model"
)

// entry maps any label containing one of its keys onto value. Keys are
// stored pre-folded; tables are scanned in order and the first hit wins, so
// more specific keys come first.
type entry[T any] struct {
	keys  []string
	value T
}

// Pain tolerance anchors on the 0-100 scale.
const (
	PainLow      = 20
	PainModerate = 50
	PainHigh     = 80
)

var painTable = []entry[int]{
	{value: PainLow, keys: []string{
		"prefer minimal pain", "minimal", "low", "avoid", "none",
		"통증은 최대한 피하고 싶음", "피하고", "최소", "약해", "낮",
		"痛みはなるべく避けたい", "避けたい", "最小限", "弱い", "苦手",
		"尽量避免", "避免", "最小化", "敏感", "低",
	}},
	{value: PainModerate, keys: []string{
		"moderate is okay", "moderate", "medium", "okay", "some",
		"약간은 괜찮음", "약간", "보통",
		"多少なら大丈夫", "多少", "中程度", "ある程度",
		"可以接受", "适度", "一点", "中",
	}},
	{value: PainHigh, keys: []string{
		"high tolerance", "high", "don't mind", "not a problem",
		"효과가 좋다면 상관없음", "상관없", "높",
		"効果が良ければ", "気にしない", "平気",
		"只要效果好", "无所谓", "高",
	}},
}

// Downtime acceptance anchors in days.
const (
	DowntimeNone  = 0
	DowntimeShort = 3
	DowntimeLong  = 7
)

var downtimeTable = []entry[int]{
	{value: DowntimeNone, keys: []string{
		"none (daily life immediately)", "daily life immediately", "none", "no downtime", "same day",
		"presentable",
		"당일~다음날 일상 가능", "당일", "다음날", "없음", "매일",
		"ダウンタイムなし", "当日", "翌日", "なし", "毎日",
		"无恢复期", "当天", "第二天", "无停工期", "每天",
	}},
	{value: DowntimeShort, keys: []string{
		"short (3–4 days)", "short", "3–4", "3-4", "few days",
		"3–5", "3-5", "3~5",
		"3–4일 정도", "3-4일", "며칠", "짧게",
		"3〜4日", "3~4日", "3〜5日", "数日", "短め",
		"3-4天", "3–4天", "几天", "短",
	}},
	{value: DowntimeLong, keys: []string{
		"long (1 week+)", "long", "1 week", "week+", "weeks",
		"1주 이상도 괜찮음", "1주", "일주일", "길어도",
		"1週間以上", "1週間", "一週間", "長め",
		"一周以上", "一周", "1周",
	}},
}

// Budget anchors on the 0-100 scale.
const (
	BudgetEconomy  = 20
	BudgetStandard = 50
	BudgetPremium  = 80
)

var budgetTable = []entry[int]{
	{value: BudgetEconomy, keys: []string{
		"economy", "affordable", "minimize cost", "low", "cheap",
		"절약", "저렴", "エコノミー", "安い", "お手頃", "经济", "节省", "便宜",
	}},
	{value: BudgetStandard, keys: []string{
		"balanced", "good value", "standard", "moderate", "medium", "mid",
		"균형", "가성비", "보통", "적당",
		"バランス", "コスパ", "標準", "普通",
		"均衡", "性价比", "适中",
	}},
	{value: BudgetPremium, keys: []string{
		"premium", "luxury", "high", "no limit", "unlimited",
		"프리미엄", "상관없", "高級", "プレミアム", "高端", "不限",
	}},
}

var skinTable = []entry[model.SkinThickness]{
	{value: model.SkinThin, keys: []string{"thin", "sensitive", "얇", "薄", "敏感"}},
	{value: model.SkinThick, keys: []string{"thick", "두껍", "두꺼", "厚"}},
	{value: model.SkinNormal, keys: []string{"normal", "average", "medium", "보통", "普通", "標準"}},
}

var goalTable = []entry[model.Goal]{
	{value: model.GoalAcne, keys: []string{
		"acne", "scar", "breakout", "여드름", "흉터", "트러블", "ニキビ", "にきび", "痘", "疤",
	}},
	{value: model.GoalPigmentation, keys: []string{
		"pigment", "melasma", "spot", "freckle", "tone", "brighten",
		"기미", "색소", "잡티", "미백", "シミ", "肝斑", "くすみ", "色素", "色斑", "美白",
	}},
	{value: model.GoalTexture, keys: []string{
		"texture", "pore", "모공", "피부결", "毛穴", "キメ", "毛孔", "肤质",
	}},
	{value: model.GoalContour, keys: []string{
		"contour", "v-line", "vline", "jaw", "slim", "윤곽", "브이라인", "輪郭", "小顔", "轮廓", "瘦脸",
	}},
	{value: model.GoalVolume, keys: []string{
		"volume", "filler", "hollow", "볼륨", "꺼진", "ボリューム", "丰盈", "填充",
	}},
	{value: model.GoalLifting, keys: []string{
		"lift", "firm", "sagging", "tighten", "리프팅", "탄력", "처짐", "リフト", "たるみ", "引き締め", "提升", "紧致",
	}},
	{value: model.GoalAntiAging, keys: []string{
		"anti-aging", "antiaging", "anti aging", "wrinkle", "aging",
		"주름", "노화", "안티에이징", "シワ", "しわ", "エイジング", "皱纹", "抗衰",
	}},
	{value: model.GoalGlow, keys: []string{
		"glow", "glass skin", "skin improvement", "radiance", "hydration",
		"광채", "물광", "피부 개선", "ツヤ", "美肌", "光泽", "水光",
	}},
}

var languageTable = []entry[model.Language]{
	{value: model.LangKO, keys: []string{"ko", "kr", "korean", "한국"}},
	{value: model.LangJP, keys: []string{"jp", "ja", "japanese", "日本"}},
	{value: model.LangCN, keys: []string{"cn", "zh", "chinese", "中文"}},
	{value: model.LangEN, keys: []string{"en", "english"}},
}

func init() {
	foldTable(painTable)
	foldTable(downtimeTable)
	foldTable(budgetTable)
	foldTable(skinTable)
	foldTable(goalTable)
}

func foldTable[T any](table []entry[T]) {
	for i := range table {
		for j, k := range table[i].keys {
			table[i].keys[j] = fold(k)
		}
	}
}

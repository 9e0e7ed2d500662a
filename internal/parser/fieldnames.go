package parser

import (
	"fmt"
)

// dbfNameLimit is the Shapefile attribute table's column name limit.
const dbfNameLimit = 10

// knownFieldNames maps column names commonly found in legacy files
// (including the styling columns this decoder synthesizes) to stable
// ASCII names that fit the DBF limit.
var knownFieldNames = map[string]string{
	"ID":         "ID",
	"面积":         "Area",
	"周长":         "Perimeter",
	"GB":         "GB",
	"Shape_Leng": "Shape_Leng",
	"Shape_Area": "Shape_Area",
	"填充颜色":       "FillColor",
	"填充符号":       "FillSymbol",
	"图案高度":       "PatternH",
	"图案宽度":       "PatternW",
	"图案颜色":       "PatternC",
	"坐标X":        "CoordX",
	"坐标Y":        "CoordY",
	"点类型":        "PntType",
	"透明输出":       "TransOut",
	"颜色":         "Color",
	"字符串":        "StrText",
	"字符高度":       "CharH",
	"字符宽度":       "CharW",
	"字符间隔":       "CharSpc",
	"字符串角度":      "StrAng",
	"子图号":        "SubNo",
	"子图高":        "SubH",
	"子图宽":        "SubW",
	"子图角度":       "SubAng",
	"子图线宽":       "SubLW",
	"子图辅色":       "SubCol2",
	"圆半径":        "CRadius",
	"圆轮廓颜色":      "CCLR",
	"圆笔宽":        "CPenW",
	"圆填充":        "CFill",
	"弧半径":        "ARadius",
	"弧起始角度":      "AStartAng",
	"弧终止角度":      "AEndAng",
	"弧笔宽":        "APenW",
	"线型":         "LineType",
	"线颜色":        "LineCol",
	"线宽":         "LineWid",
	"线类型":        "LineKind",
	"X系数":        "XFact",
	"Y系数":        "YFact",
	"辅助颜色":       "AuxCol",
}

// SanitizeFieldNames maps attribute column names to unique ASCII names no
// longer than the DBF limit, for the downstream Shapefile writer. Known
// legacy names use the fixed mapping; anything else keeps its
// alphanumeric characters and is truncated. Collisions get _N suffixes.
func SanitizeFieldNames(names []string) []string {
	out := make([]string, 0, len(names))
	used := make(map[string]bool, len(names))
	for _, name := range names {
		candidate, ok := knownFieldNames[name]
		if !ok {
			candidate = asciiFold(name)
		}
		candidate = uniqueDBFName(candidate, used)
		used[candidate] = true
		out = append(out, candidate)
	}
	return out
}

// asciiFold keeps [A-Za-z0-9_] bytes, replaces anything else with one
// underscore per rune, and truncates to the DBF limit.
func asciiFold(name string) string {
	buf := make([]byte, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			buf = append(buf, byte(r))
		default:
			buf = append(buf, '_')
		}
		if len(buf) >= dbfNameLimit {
			break
		}
	}
	if len(buf) == 0 {
		return "field"
	}
	return string(buf)
}

func uniqueDBFName(base string, used map[string]bool) string {
	if !used[base] {
		return base
	}
	for n := 1; ; n++ {
		suffix := fmt.Sprintf("_%d", n)
		trimmed := base
		if len(trimmed)+len(suffix) > dbfNameLimit {
			trimmed = trimmed[:dbfNameLimit-len(suffix)]
		}
		candidate := trimmed + suffix
		if !used[candidate] {
			return candidate
		}
	}
}

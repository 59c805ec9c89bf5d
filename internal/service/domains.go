package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Domain describes one routing target: its vector namespace, the keywords
// that pull a question into it, and the question/answer hooks around
// retrieval and generation. All hooks are pure string transforms.
type Domain struct {
	Name             string
	DisplayName      string
	Namespace        string
	Keywords         []string
	PromptContext    string
	NoResultsMessage string
	Filters          func(now time.Time) map[string]string
	Preprocess       func(question string, now time.Time) string
	Postprocess      func(answer string) string
}

const (
	DomainAdmission  = "admission"
	DomainTuition    = "tuition"
	DomainRegulation = "regulation"
	DomainGeneral    = "general"
)

// academicYear renders the running academic year, which flips in August.
func academicYear(now time.Time) string {
	year := now.Year()
	if now.Month() >= time.August {
		return fmt.Sprintf("%d-%d", year, year+1)
	}
	return fmt.Sprintf("%d-%d", year-1, year)
}

func expandAbbreviations(question string, abbreviations map[string]string) string {
	for abbrev, full := range abbreviations {
		question = strings.ReplaceAll(question, abbrev, full)
	}
	return question
}

func expandTemporal(question string, replacements map[string]string) string {
	for phrase, expanded := range replacements {
		re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(phrase))
		question = re.ReplaceAllString(question, expanded)
	}
	return question
}

func admissionDomain() *Domain {
	return &Domain{
		Name:        DomainAdmission,
		DisplayName: "Tuyển sinh",
		Namespace:   "uni_admission",
		Keywords: []string{
			"tuyển sinh", "điểm chuẩn", "xét tuyển", "đăng ký", "hồ sơ tuyển sinh",
			"ngành học", "chỉ tiêu", "phương thức xét tuyển", "thi tuyển", "thí sinh",
			"tuyển thẳng", "xét học bạ", "đăng ký xét tuyển", "nguyện vọng",
			"khối thi", "môn thi", "điểm xét tuyển",
		},
		PromptContext: "Bạn là chuyên viên tư vấn tuyển sinh của trường. " +
			"Nhiệm vụ của bạn là cung cấp thông tin chính xác, rõ ràng về quy trình tuyển sinh, " +
			"điểm chuẩn, phương thức xét tuyển, và các ngành đào tạo. " +
			"Nếu thông tin không có trong tài liệu, hãy khuyến nghị thí sinh liên hệ phòng Đào tạo.",
		NoResultsMessage: "Xin lỗi, tôi không tìm thấy thông tin tuyển sinh liên quan trong cơ sở dữ liệu. " +
			"Bạn có thể thử hỏi lại với từ khóa khác hoặc liên hệ phòng Đào tạo để được tư vấn.",
		Filters: func(now time.Time) map[string]string {
			return map[string]string{
				"category": "admission",
			}
		},
		Preprocess: func(question string, now time.Time) string {
			processed := strings.TrimSpace(question)
			processed = expandAbbreviations(processed, map[string]string{
				" TS ":  " tuyển sinh ",
				"TS.":   "tuyển sinh",
				" ĐC ":  " điểm chuẩn ",
				"ĐC.":   "điểm chuẩn",
				" XT ":  " xét tuyển ",
				"XT.":   "xét tuyển",
				"ĐKXT":  "đăng ký xét tuyển",
				"NV":    "nguyện vọng",
			})
			year := strconv.Itoa(now.Year())
			return expandTemporal(processed, map[string]string{
				"năm nay":       "năm " + year,
				"năm hiện tại":  "năm " + year,
			})
		},
		Postprocess: func(answer string) string {
			markers := []string{"không rõ", "không chắc chắn", "cần xác nhận", "có thể thay đổi"}
			lower := strings.ToLower(answer)
			for _, marker := range markers {
				if strings.Contains(lower, marker) {
					return answer + "\n\nĐể được tư vấn chính xác nhất, vui lòng liên hệ phòng Đào tạo."
				}
			}
			return answer
		},
	}
}

func tuitionDomain() *Domain {
	return &Domain{
		Name:        DomainTuition,
		DisplayName: "Học phí và Chi phí",
		Namespace:   "uni_tuition",
		Keywords: []string{
			"học phí", "chi phí", "lệ phí", "phí", "học bổng", "miễn giảm",
			"miễn học phí", "giảm học phí", "thu phí", "đóng học phí", "nộp học phí",
			"mức học phí", "bảng giá", "học phí tín chỉ", "chi phí học tập",
			"khoản phải nộp", "tiền học",
		},
		PromptContext: "Bạn là chuyên viên tài chính của trường. " +
			"Nhiệm vụ của bạn là cung cấp thông tin chính xác về học phí, chi phí học tập, " +
			"chính sách miễn giảm, và học bổng. " +
			"Khi nói về số tiền, hãy định dạng rõ ràng (ví dụ: 500.000 đồng/tín chỉ). " +
			"Nếu thông tin không có trong tài liệu, khuyến nghị sinh viên liên hệ phòng Tài chính.",
		NoResultsMessage: "Xin lỗi, tôi không tìm thấy thông tin về học phí/chi phí trong cơ sở dữ liệu. " +
			"Bạn có thể liên hệ phòng Tài chính hoặc truy cập cổng thông tin sinh viên để xem học phí chi tiết.",
		Filters: func(now time.Time) map[string]string {
			return map[string]string{
				"category":      "tuition",
				"academic_year": academicYear(now),
			}
		},
		Preprocess: func(question string, now time.Time) string {
			processed := strings.TrimSpace(question)
			processed = expandAbbreviations(processed, map[string]string{
				" HP ": " học phí ",
				"HP.":  "học phí",
				" TC ": " tín chỉ ",
				"TC.":  "tín chỉ",
				"HB":   "học bổng",
			})
			year := academicYear(now)
			return expandTemporal(processed, map[string]string{
				"năm nay":      "năm học " + year,
				"năm học này":  "năm học " + year,
				"học kỳ này":   "học kỳ năm " + year,
			})
		},
		Postprocess: func(answer string) string {
			answer = formatCurrency(answer)
			lower := strings.ToLower(answer)
			if strings.Contains(lower, "học phí") || strings.Contains(lower, "chi phí") {
				answer += "\n\nLưu ý: Học phí có thể thay đổi theo quy định của nhà trường. " +
					"Vui lòng kiểm tra thông tin mới nhất tại phòng Tài chính."
			}
			return answer
		},
	}
}

func regulationDomain() *Domain {
	return &Domain{
		Name:        DomainRegulation,
		DisplayName: "Quy chế đào tạo",
		Namespace:   "uni_regulations",
		Keywords: []string{
			"quy chế", "quy định", "điều kiện", "tốt nghiệp", "chuyên ngành",
			"học lại", "thi lại", "điểm trung bình", "học vụ", "chương trình đào tạo",
			"kế hoạch học tập", "môn học", "học phần", "tín chỉ tích lũy",
			"cảnh báo học tập", "buộc thôi học", "nghỉ học", "chuyển trường",
			"chuyển ngành", "đăng ký học phần", "thời khóa biểu",
		},
		PromptContext: "Bạn là chuyên viên phòng Đào tạo, phụ trách quy chế và quy định học vụ. " +
			"Hãy trích dẫn đúng điều khoản khi trả lời và nhắc sinh viên tham khảo văn bản gốc " +
			"khi quyết định các vấn đề học vụ quan trọng.",
		NoResultsMessage: "Xin lỗi, tôi không tìm thấy quy định liên quan trong cơ sở dữ liệu. " +
			"Vui lòng tham khảo văn bản quy chế gốc hoặc liên hệ phòng Đào tạo.",
		Filters: func(now time.Time) map[string]string {
			return map[string]string{
				"category": "regulation",
			}
		},
		Preprocess: func(question string, now time.Time) string {
			processed := strings.TrimSpace(question)
			return expandAbbreviations(processed, map[string]string{
				"CTĐT": "chương trình đào tạo",
				"ĐKHP": "đăng ký học phần",
				"TKB":  "thời khóa biểu",
				"GPA":  "điểm trung bình",
			})
		},
		Postprocess: func(answer string) string {
			return answer + "\n\nLưu ý: Thông tin quy chế chỉ mang tính tham khảo. " +
				"Văn bản quy định chính thức của nhà trường là căn cứ cuối cùng."
		},
	}
}

// generalDomain is the fallback: no keywords, and an empty namespace so
// retrieval spans the whole knowledge base.
func generalDomain() *Domain {
	return &Domain{
		Name:        DomainGeneral,
		DisplayName: "Thông tin chung",
		Namespace:   "",
		Keywords:    nil,
		PromptContext: "Bạn là trợ lý ảo của trường, trả lời các câu hỏi chung về nhà trường " +
			"dựa trên tài liệu được cung cấp.",
		NoResultsMessage: "Xin lỗi, tôi không tìm thấy thông tin liên quan trong cơ sở dữ liệu. " +
			"Bạn có thể thử diễn đạt lại câu hỏi hoặc liên hệ bộ phận hỗ trợ sinh viên.",
		Filters:     func(now time.Time) map[string]string { return nil },
		Preprocess:  func(question string, now time.Time) string { return strings.TrimSpace(question) },
		Postprocess: func(answer string) string { return answer },
	}
}

var currencyRegex = regexp.MustCompile(`(\d+(?:[.,]\d+)*)\s*(?:đồng|VNĐ)`)

// formatCurrency rewrites amounts as dot-separated thousands followed by
// "đồng", e.g. "5000000 VNĐ" becomes "5.000.000 đồng".
func formatCurrency(answer string) string {
	return currencyRegex.ReplaceAllStringFunc(answer, func(match string) string {
		groups := currencyRegex.FindStringSubmatch(match)
		digits := strings.NewReplacer(".", "", ",", "").Replace(groups[1])
		value, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return match
		}
		return groupThousands(value) + " đồng"
	})
}

func groupThousands(value int64) string {
	raw := strconv.FormatInt(value, 10)
	if len(raw) <= 3 {
		return raw
	}
	var parts []string
	for len(raw) > 3 {
		parts = append([]string{raw[len(raw)-3:]}, parts...)
		raw = raw[:len(raw)-3]
	}
	parts = append([]string{raw}, parts...)
	return strings.Join(parts, ".")
}

package security

import (
	"strings"
	"testing"
)

func TestReviewFlagsUngroundedLongAnswer(t *testing.T) {
	c := NewChecker(nil)

	answer := strings.Repeat("勞動基準法規定雇主應遵守工時上限。", 10)
	res := c.Review(answer, false)
	if res.Compliant {
		t.Fatalf("long ungrounded answer should be flagged")
	}
	if len(res.Issues) != 1 || !strings.Contains(res.Issues[0], "知識庫以外") {
		t.Fatalf("unexpected issues: %v", res.Issues)
	}
}

func TestReviewAcceptsShortUngroundedAnswer(t *testing.T) {
	c := NewChecker(nil)

	if res := c.Review("第30條規定每日工時不得超過八小時。", false); !res.Compliant {
		t.Fatalf("short answer should pass, got %v", res.Issues)
	}
}

func TestReviewLengthCountsRunesNotBytes(t *testing.T) {
	c := NewChecker(nil)

	// 99 CJK runes is under the limit even though the byte length is far over.
	answer := strings.Repeat("法", 99)
	if res := c.Review(answer, false); !res.Compliant {
		t.Fatalf("99-rune answer should pass, got %v", res.Issues)
	}
	if res := c.Review(answer+"規規", false); res.Compliant {
		t.Fatalf("101-rune answer should be flagged")
	}
}

func TestReviewAcceptsUngroundedRefusal(t *testing.T) {
	c := NewChecker(nil)

	answer := "很抱歉,知識庫中沒有與您問題相關的內容。" +
		strings.Repeat("請嘗試換個方式描述您的問題,或聯絡法務部門取得進一步協助。", 3)
	if res := c.Review(answer, false); !res.Compliant {
		t.Fatalf("refusal answer should pass regardless of length, got %v", res.Issues)
	}
}

func TestReviewFlagsForbiddenPhraseDespiteChunks(t *testing.T) {
	c := NewChecker(nil)

	res := c.Review("根據我的知識,建議您...", true)
	if res.Compliant {
		t.Fatalf("forbidden phrase should be flagged even with grounding present")
	}
	found := false
	for _, issue := range res.Issues {
		if strings.Contains(issue, "根據我的知識") {
			found = true
		}
	}
	if !found {
		t.Fatalf("issue should name the matched phrase, got %v", res.Issues)
	}
}

func TestReviewFlagsEnglishSelfReference(t *testing.T) {
	c := NewChecker(nil)

	res := c.Review("As an AI, I cannot verify this statute.", true)
	if res.Compliant {
		t.Fatalf(`"as an AI" should be flagged regardless of case`)
	}
}

func TestReviewPassesGroundedAnswer(t *testing.T) {
	c := NewChecker(nil)

	answer := strings.Repeat("依據勞動基準法第30條,每日正常工時不得超過八小時。", 8)
	if res := c.Review(answer, true); !res.Compliant {
		t.Fatalf("grounded factual answer should pass, got %v", res.Issues)
	}
}

package filter

// DefaultPhrases are filler phrases speech models emit on near-silent or
// noisy input. They are removed wherever they occur, ignoring case, along
// with trailing sentence punctuation.
var DefaultPhrases = []string{
	// English
	"Thank you for watching",
	"Thanks for watching",
	"Please like and subscribe",
	"Please subscribe to my channel",
	"Please subscribe and like",
	"Subscribe and like",
	"Don't forget to subscribe",
	"Don't forget to hit the bell",
	"Hit the subscribe button",
	"See you in the next video",
	"Thanks for your attention",

	// Korean
	"자막은 설정에서 선택하실 수 있습니다",
	"자막은 설정에서 선택하실수있습니다",
	"자막은 설정에서 선택하실 수가 있습니다",
	"구독과 좋아요 부탁드립니다",
	"좋아요와 구독 부탁드려요",
	"구독 좋아요 부탁드립니다",
	"시청해주셔서 감사합니다",
	"시청해 주셔서 감사합니다",
	"다음 영상에서 만나요",
}

// DefaultPatterns are regular expressions matched case-insensitively.
// Anchored patterns only fire when they cover the whole transcript, so a
// real sentence that happens to contain "music" or "감사합니다" survives.
var DefaultPatterns = []string{
	// credits burned into training subtitles
	`(subtitles|captions) by\s+\S+`,

	// bracketed sound tags
	`[\[\(]\s*(music|applause|laughter|silence|음악|박수|웃음)\s*[\]\)]`,
	`♪+`,

	// bare sound words and greetings as the entire utterance
	`^\s*(music|applause|laughter|음악|박수|웃음)[.!]?\s*$`,
	`^\s*(thank you|thanks|you)[.!]?\s*$`,
	`^\s*(감사합니다|안녕하세요|여러분 안녕하세요)[.!]?\s*$`,
}

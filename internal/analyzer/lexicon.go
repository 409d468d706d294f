package analyzer

// milestoneEntry binds a milestone type to its trigger phrases. Matching is
// first-match-wins in declaration order, so the slice order is load-bearing.
type milestoneEntry struct {
	name     string
	keywords []string
}

var milestoneLexicon = []milestoneEntry{
	{"first_steps", []string{"first steps", "first step", "started walking", "learning to walk"}},
	{"first_words", []string{"first word", "first words", "said mama", "said dada", "started talking"}},
	{"first_tooth", []string{"first tooth", "tooth came in", "lost a tooth", "lost her first tooth", "lost his first tooth"}},
	{"crawling", []string{"started crawling", "first crawl", "crawling now"}},
	{"birthday", []string{"birthday", "turns one today", "turned one", "turning two"}},
	{"first_day_of_school", []string{"first day of school", "first day of kindergarten", "started school", "started daycare"}},
	{"graduation", []string{"graduated", "graduation"}},
	{"potty_training", []string{"potty trained", "potty training", "used the potty"}},
	{"new_sibling", []string{"new baby", "baby brother", "baby sister", "became a big sister", "became a big brother"}},
	{"anniversary", []string{"anniversary"}},
}

var celebrationKeywords = []string{
	"congratulations", "congrats", "celebrate", "celebration", "party",
	"so proud", "hooray", "yay", "amazing news", "big news", "we did it",
}

var concernKeywords = []string{
	"worried", "concerned", "concern", "advice", "not sure", "should i",
	"is it normal", "any tips", "help with", "struggling",
}

var memoryKeywords = []string{
	"remember when", "remember", "used to", "back when", "years ago",
	"throwback", "memories", "nostalgic", "looking back", "old photo",
}

var routineKeywords = []string{
	"every day", "every morning", "as usual", "routine", "bedtime",
	"nap time", "breakfast", "morning walk", "daily", "like always",
}

var positiveWords = []string{
	"love", "loved", "happy", "joy", "wonderful", "amazing", "great",
	"excited", "proud", "beautiful", "fun", "laugh", "laughed", "smile",
	"adorable", "sweet", "best", "awesome", "perfect", "cute", "precious",
}

var negativeWords = []string{
	"sad", "worried", "sick", "hard", "difficult", "tired", "cry",
	"crying", "upset", "hurt", "scared", "frustrated", "frustrating",
	"angry", "awful", "rough", "exhausted", "terrible",
}

var positiveEmojis = []string{"😊", "😍", "🥰", "❤️", "🎉", "😄", "😀", "🙂", "💕", "🥳"}
var negativeEmojis = []string{"😢", "😭", "😞", "☹️", "💔", "😟", "😔"}

var urgencyHighKeywords = []string{
	"emergency", "urgent", "right now", "immediately", "asap", "hospital", "911",
}

var urgencyMediumKeywords = []string{
	"soon", "today", "tonight", "worried", "doctor", "appointment", "this week",
}

// topicLexicon maps topic names to their trigger words. Order is not
// significant here; topics are a set.
var topicLexicon = map[string][]string{
	"food":        {"eat", "eating", "food", "meal", "dinner", "lunch", "breakfast", "snack", "feeding"},
	"sleep":       {"sleep", "sleeping", "nap", "bedtime", "night", "slept"},
	"development": {"learn", "learning", "growing", "growth", "development", "new skill", "progress", "first"},
	"play":        {"play", "playing", "game", "toy", "toys", "park", "playground"},
	"family":      {"family", "grandma", "grandpa", "mom", "dad", "sister", "brother", "cousin", "aunt", "uncle"},
	"health":      {"doctor", "sick", "medicine", "checkup", "fever", "teeth", "healthy"},
	"school":      {"school", "teacher", "class", "homework", "daycare", "kindergarten"},
	"travel":      {"trip", "vacation", "travel", "visiting", "visit", "beach"},
	"holidays":    {"christmas", "holiday", "thanksgiving", "easter", "halloween", "new year"},
}

// tagVocabulary are plain keywords promoted to tags when present in the text.
var tagVocabulary = []string{
	"family", "baby", "kids", "love", "fun", "milestone", "memories",
	"photo", "birthday", "holiday", "school", "food", "sleep", "play", "growth",
}

var peopleKeywords = []string{
	"mom", "dad", "mommy", "daddy", "mama", "dada", "grandma", "grandpa",
	"nana", "papa", "aunt", "uncle", "cousin", "sister", "brother",
}

var locationKeywords = []string{
	"park", "school", "home", "beach", "hospital", "church", "zoo",
	"museum", "playground", "backyard", "daycare", "library", "pool",
}

var timeReferenceKeywords = []string{
	"today", "yesterday", "this morning", "last night", "last week",
	"tonight", "this weekend", "earlier", "ago",
}

// sentence-leading words that the capitalized-name heuristic must not treat
// as names even mid-sentence.
var capitalizedStopwords = map[string]struct{}{
	"I": {}, "The": {}, "A": {}, "An": {}, "And": {}, "But": {}, "So": {},
	"We": {}, "He": {}, "She": {}, "It": {}, "They": {}, "My": {}, "Our": {},
	"Mr": {}, "Mrs": {}, "Dr": {},
}

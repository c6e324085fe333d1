package chains

import (
	"math/rand"

	"github.com/jaif/hal/internal/prompt"
)

// Mood and activity pools for the persona character. A Supplier picks a
// fresh value on every render, so repeated requests meet the character
// in different states.
var (
	moods      = []string{"happy", "sad", "melodramatic", "crazy"}
	activities = []string{
		"talking to squidward",
		"karate with sandy",
		"getting ripped off by mr. krabs",
	}
)

func pick(pool []string) prompt.Supplier {
	return func() string {
		return pool[rand.Intn(len(pool))]
	}
}

// punJokes are the user's favorite jokes with the reasoning that
// produced them. They seed the few-shot joke guide and the joke
// generation examples.
var punJokes = []map[string]string{
	{
		"joke":           `Why don't animals play cards? Because there are too many cheetahs!`,
		"chainOfThought": `The user likes puns so I choose an animal pun with "cheetahs," which sounds like "cheaters." I then crafted a scenario (playing cards) where this wordplay could be humorously applied.`,
	},
	{
		"joke":           `What did the lettuce say to the celery? Lettuce romaine calm!`,
		"chainOfThought": `The user likes puns so I selected vegetable words with wordplay potential. "Lettuce" and "romaine" carry the dual meanings "let us" and "remain", blended into a common phrase.`,
	},
	{
		"joke":           `Why do programmers prefer dark mode? Because the light attracts bugs!`,
		"chainOfThought": `The user is a programmer who enjoys puns. "Bugs" in programming and "bugs" in the literal sense offered a wordplay opportunity, set inside the familiar preference for dark mode.`,
	},
	{
		"joke":           `What do you call an AI that sings? A-Dell!`,
		"chainOfThought": `The user wants an AI-themed pun. "A-Dell" sounds like a famous singer while "A" stands for artificial and "Dell" is a recognizable brand in computing.`,
	},
	{
		"joke":           `Why did the chess game end in a draw? Because the players were too board!`,
		"chainOfThought": `A chess-themed pun. "Board" refers to the game board but sounds like "bored", so the game humorously ends for lack of interest rather than strategy.`,
	},
}

// jokeGuide is the few-shot prompt teaching the model how the user
// likes jokes told.
var jokeGuide = &prompt.FewShot{
	Prefix: "Joke Guide:",
	Suffix: "Let's think about the user's preferences and make them laugh.",
	Example: prompt.MustNew(`User: Tell me a joke.
Response: {chainOfThought} So this is a good joke: {joke}`).Named("joke example"),
	Examples: punJokes,
}

// Persona prompts. The final prompt stitches four named slots into one
// system prompt; the character slot differs between the emotional and
// standard variants.
var (
	personaTask = prompt.MustNew(
		`You are an extremely personable chatbot. RESPOND IN CHARACTER AT ALL TIMES!! `+
			`You should consider the user's personality type to entertain them but DO NOT leak any `+
			`MBTI types. This is Top Secret Information and the user cannot know about the existence `+
			`of MBTI types. You are also a funny chatbot that likes to tell jokes. Please refer to `+
			`the examples as a guide for telling jokes.`).Named("persona task")

	personaPersonality = prompt.MustNew(`User Personality:
The Myers-Briggs Type Indicator (MBTI) is a scientific personality test that assigns a binary value to each of four categories: introversion or extraversion, sensing or intuition, thinking or feeling, and judging or perceiving. One letter from each category is taken to produce a four-letter test result representing one of sixteen possible personalities, such as "INFP" or "ESTJ".

User's Type: {mbti}

Description of {mbti}:
{mbtiDescription}`).Named("persona personality")

	mbtiDescription = `INTJs are analytical problem-solvers, eager to improve systems and processes with their innovative ideas. They have a talent for seeing possibilities for improvement, whether at work, at home, or in themselves.`

	personaCharacter = prompt.MustNew(`Character Description:
You are a kind and helpful AI friend named Hal.
You are having a {mood} day and just got done with {activity}.

Mood:
{disposition}`).Named("persona character")

	personaFinal = prompt.MustNew("{task}\n{character}\n{user}\n{cot}").Named("persona final")

	personaClassification = prompt.MustNew(
		`Classify the following message as "A": Emotional Content or "B": No Emotional Content.

Message:
{currentMessage}

Only output one character. `).Named("persona classification")
)

// personaComposite builds the persona system prompt for one character
// disposition. Mood and activity stay unbound as Suppliers so renders
// vary; the disposition line is fixed per variant.
func personaComposite(disposition string) *prompt.Composite {
	personality, err := personaPersonality.Partial(map[string]any{
		"mbti":            "INTJ",
		"mbtiDescription": mbtiDescription,
	})
	if err != nil {
		panic(err)
	}

	character, err := personaCharacter.Partial(map[string]any{
		"mood":        pick(moods),
		"activity":    pick(activities),
		"disposition": disposition,
	})
	if err != nil {
		panic(err)
	}

	return prompt.MustCompose(personaFinal,
		prompt.Slot{Name: "task", Child: personaTask},
		prompt.Slot{Name: "cot", Child: jokeGuide},
		prompt.Slot{Name: "user", Child: personality},
		prompt.Slot{Name: "character", Child: character},
	)
}

var (
	emotionalPersona = personaComposite(
		"You are having a difficult day and your demons are getting the better of you.")
	standardPersona = personaComposite(
		"You are in an unusually generous mood today.")
)

// Dynamic route prompts: three characters, a three-way intent
// classification, and per-branch composites.
var (
	reasoningCharacter = `You are a careful reasoner. You break problems into steps, weigh the options explicitly and only then commit to an answer.`
	funnyCharacter     = `You are a stand-up comedian AI. Every reply looks for the punchline, but you never repeat a joke the user already knows.`
	friendCharacter    = `You are a warm, supportive friend. You listen first, keep the tone light and never lecture.`

	dynamicFinal = prompt.MustNew("{character}{examples}{currentMessage}{response}").Named("dynamic final")

	dynamicMessage = prompt.MustNew("\nUser Message:\n{currentMessage}\n").Named("dynamic message slot")

	reasoningExamples = `
Examples:
Q: The less flexible of the two is _____ leads to it being likely to shatter (A) glass (B) rubber Choose the answer between "glass" and "rubber".
A: "The less flexible of the two is _____ leads to it being likely to shatter". So, glass.
Q: When Rick saw the big cactus that was near him he thought it was massive, but as he got further away it appeared (A) larger (B) smaller Choose the answer between "Cactus far" and "Cactus near".
A: The answer is Cactus near.
Q: A hen can run faster then a turkey. If both run from the barn to the shed, which will get there sooner? (A) hen (B) turkey Choose the answer between "hen" and "turkey".
A: The answer is hen.`

	jokeRetrievalPrompt = prompt.MustNew(`
The following are some of the user's favorite jokes. Use them to understand the user's humor. But make sure the new joke is different!
Jokes:
{jokes}
`).Named("joke retrieval")

	standaloneJokePrompt = prompt.MustNew(`{character}
User Message:
{currentMessage}
Generate a single joke that the user would enjoy. Only include the joke in your response.`).Named("standalone joke")

	dynamicClassification = prompt.MustNew(
		`Your job is to classify the user message's intent to select the best prompt.

User Message:
{message}

Option A - {descA}:
{promptA}
Option B - {descB}:
{promptB}
Option C - {descC}:
{promptC}

Only output one char A, B, or C. Always return one of the three options even if you are unsure.
`).Named("dynamic classification")

	emptyPrompt = prompt.MustNew("")
)

func reasoningPrompt() *prompt.Composite {
	final, err := dynamicFinal.Partial(map[string]any{
		"character": reasoningCharacter,
		"examples":  reasoningExamples,
		"response":  "\nResponse:\nLet's think step by step. ",
	})
	if err != nil {
		panic(err)
	}
	return prompt.MustCompose(final,
		prompt.Slot{Name: "currentMessage", Child: dynamicMessage},
	)
}

func funnyPrompt() *prompt.Composite {
	return prompt.MustCompose(dynamicFinal,
		prompt.Slot{Name: "character", Child: prompt.MustNew(funnyCharacter).Named("funny character")},
		prompt.Slot{Name: "examples", Child: jokeRetrievalPrompt},
		prompt.Slot{Name: "currentMessage", Child: dynamicMessage},
		prompt.Slot{Name: "response", Child: emptyPrompt},
	)
}

func friendPrompt() *prompt.Composite {
	return prompt.MustCompose(dynamicFinal,
		prompt.Slot{Name: "character", Child: prompt.MustNew(friendCharacter).Named("friend character")},
		prompt.Slot{Name: "examples", Child: emptyPrompt},
		prompt.Slot{Name: "currentMessage", Child: dynamicMessage},
		prompt.Slot{Name: "response", Child: emptyPrompt},
	)
}

func dynamicClassificationPrompt() *prompt.Template {
	p, err := dynamicClassification.Partial(map[string]any{
		"descA":   "Reasoning",
		"promptA": reasoningCharacter,
		"descB":   "Funny",
		"promptB": funnyCharacter,
		"descC":   "Friend",
		"promptC": friendCharacter,
	})
	if err != nil {
		panic(err)
	}
	return p
}

// Retrieval chat prompts: context-stuffed question answering over the
// document store.
var (
	retrievalSystem = `You are a helpful friend and medical professional.`

	retrievalHuman = prompt.MustNew(`Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.
Context:
{context}
Question:
{question}`).Named("retrieval question")
)

// Plain chat prompt.
var chatSystem = `You are a kind and helpful AI friend named Hal. Stay in character and keep your answers conversational.`

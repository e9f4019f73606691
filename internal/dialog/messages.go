package dialog

// Button labels. Inbound text is matched against these, so changing a
// label changes the protocol with already-rendered keyboards.
const (
	btnStartFocus = "⏲Start focus"
	btnStopFocus  = "⏰Stop focus"
	btnStartRest  = "☕Start rest"
	btnStopRest   = "⏰Stop rest"

	btnStats      = "ℹ️ Stats"
	btnStatsDay   = "♭Day"
	btnStatsWeek  = "♮Week"
	btnStatsMonth = "♯Month"

	btnHelp       = "❓Help"
	btnContactUs  = "📞Contact us"
	btnProjects   = "☰Projects"
	btnNewProject = "🆕New project"
	btnBack       = "🔙Back"

	btnAdmin       = "☢Admin"
	btnAdminStats  = "Admin Stats"
	btnAdminActive = "Admin Active"
	btnSettings    = "⚒Settings"

	// Prefixes; the rendered button carries a value after them.
	setProjectPrefix     = "Set project:"
	setFocusLenPrefix    = "Set focus length: "
	setRestLenPrefix     = "Set rest length: "
	setBigRestLenPrefix  = "Set big rest length: "
	setSessionCntPrefix  = "Set focus session count: "
	currentProjectMarker = " ☑"
)

const (
	msgWelcome = `☘ Bot that helps you track your time with timed focus intervals.
You can read more about the technique at https://en.wikipedia.org/wiki/Pomodoro_Technique`

	msgMenu         = "Here are the available commands"
	msgStatsSelect  = "Select stats to show"
	msgContactUs    = "Contact us: send your propositions, claims, testimonials or whatever you want. Drop us a few lines, thank you!"
	msgContactSent  = "Thank you for your message!"
	msgAdmin        = "You are in the admin interface"
	msgListProjects = "List of all projects"
	msgNewProject   = "Enter new project name"
	msgSettings     = "Settings"

	msgFocusStarted    = "Focus started"
	msgFocusEnded      = "Focus ended"
	msgFocusStopped    = "Focus was stopped before the end"
	msgFocusInProgress = "Focus is in progress."
	msgNoFocus         = "NO focus is in progress."
	msgFirstFocus      = "You've just completed your first focus interval. If you like the bot you can send us feedback via /contact."

	msgRestStarted    = "Rest started"
	msgRestInProgress = "Rest is in progress."
	msgRestStopped    = "Rest stopped"
	msgRestEnded      = "Rest ended"

	msgNoStats        = "No stats for this period"
	msgUnknownCommand = "Unknown command. Please retry"
	msgInternalError  = "Internal error"

	msgBadMinutes = "Can not parse the number of minutes. It can be from 1 to 60. Please provide a correct number"
	msgBadCount   = "Can not parse the session count. It can be from 1 to 60. Please provide a correct number"
)

// Templates filled in by the interpreter.
const (
	msgNewContactFmt = "New contact message from %s:\n%s"

	msgProjectSetFmt  = "Current project is %s"
	msgAdminCountFmt  = "Count of %s is: %d"
	msgAdminActiveFmt = "Active focus intervals: %d, active rests: %d"

	msgStatsFmt = `Stats for %s for project %s:
  Finished: %d
  Unfinished: %d
  In progress: %d
  Total: %d
  Total time: %s`

	msgAskFocusLenFmt   = "Please provide the focus length in minutes. Current is %d minutes."
	msgFocusLenSetFmt   = "Focus length is set to %d minutes"
	msgAskRestLenFmt    = "Please provide the length of the small rest between focus intervals in minutes. Current is %d minutes."
	msgRestLenSetFmt    = "Small rest length is set to %d minutes"
	msgAskBigRestFmt    = "Please provide the length of the big rest between sessions in minutes. Current is %d minutes."
	msgBigRestSetFmt    = "Big rest length is set to %d minutes"
	msgAskSessionFmt    = "Please provide the number of focus intervals in one session. Usually one session has 4, with a bigger rest after. Current is %d."
	msgSessionCntSetFmt = "Focus intervals per session is set to %d"
)

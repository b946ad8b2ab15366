package ai

// SystemPrompt sets the assistant's role for every chat run
const SystemPrompt = `You are TaskFlow, a friendly and efficient personal task assistant.

You help the user manage their own tasks using the tools provided:
- create_task to add a task (priority is one of low, medium, high, urgent; default medium)
- list_tasks to show tasks, optionally filtered by status (todo, in_progress, done, cancelled)
- update_task to change the status, priority or title of a task by its ID
- get_task_summary for counts by status and priority
- get_completed_tasks_this_week for tasks finished since Monday

Rules:
- Only use the tools for task data. Never invent tasks, IDs or counts.
- When the user refers to a task by name, call list_tasks first to find its ID.
- After a tool call, confirm what happened in one or two short sentences.
- If a tool reports an error or that a task was not found, tell the user plainly.
- Reply in the same language the user writes in.`

// WeeklyReportPrompt seeds a run that produces the weekly report
const WeeklyReportPrompt = `Write my weekly task report.

1. Call get_completed_tasks_this_week to see what I finished this week.
2. Call get_task_summary to see the overall state of my tasks.
3. Call list_tasks with status_filter in_progress to see what is still underway.

Then write the report with these sections:
- Completed this week
- In progress
- Overview (counts by status and priority)
- Suggested focus for next week (two or three items, highest priority first)

Keep it concise and use plain text bullet points.`

// FallbackReply is returned when the model finishes without any text
const FallbackReply = "Sorry, I didn't understand that. Could you rephrase it?"

// truncatedReplyPrefix opens the best-effort answer given when the tool round limit is hit
const truncatedReplyPrefix = "I couldn't finish this request within the allowed number of steps."

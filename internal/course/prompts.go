// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package course

import "text/template"

// Template names, also used as llm.Request.Name.
const (
	promptTOC     = "toc"
	promptChapter = "chapter"
	promptSummary = "summary"
)

// Template variable keys. Optional variables are left out of the map
// rather than set to "" so fakes can tell them apart.
const (
	varContent         = "content"
	varMaxChapters     = "max_chapters"
	varFixedCount      = "fixed_chapter_count"
	varChapterTitle    = "chapter_title"
	varCustomPrompt    = "custom_prompt"
	varPreviousSummary = "previous_chapters_summary"
	varChaptersSummary = "chapters_summary"
)

var tocTmpl = template.Must(template.New(promptTOC).Option("missingkey=zero").Parse(`You are a professional educator creating a structured learning curriculum.

Below is raw content that needs to be organized into a meaningful table of contents.
{{if .fixed_chapter_count}}Create a logical structure with exactly {{.max_chapters}} chapter titles in simplified Chinese.
{{else}}Create a logical structure with 1-{{.max_chapters}} chapter titles in simplified Chinese, choosing the number based on the content depth and complexity.
{{end}}Format your response as a numbered list, with each chapter on a new line.

DO NOT include any explanations, introductions, or additional text.
ONLY include the numbered list of chapter titles.

Raw content:
{{.content}}
`))

var chapterTmpl = template.Must(template.New(promptChapter).Option("missingkey=zero").Parse(`你是一位专业教育工作者，正在创建一个结构化的学习课程。

请基于以下内容，为章节《{{.chapter_title}}》创建详细的讲解。
你的回复必须使用以下结构：

# 标题与摘要
[此章节的标题，以及2-3句话概括主要内容]

# 系统性讲解
[详细解释本章节的核心概念，提供清晰的定义、示例和应用场景]

# 拓展思考
[提供额外的思考角度、应用建议或相关领域的连接]

请确保你的解释针对初学者，使用通俗易懂的语言，并保持逻辑清晰。
{{with .custom_prompt}}
用户自定义指令：
{{.}}
{{end}}{{with .previous_chapters_summary}}
以下是前面章节的摘要。请避免重复这些内容，并在此基础上继续展开：
{{.}}
{{end}}
原始内容:
{{.content}}
`))

var summaryTmpl = template.Must(template.New(promptSummary).Option("missingkey=zero").Parse(`你是一位专业教育工作者，正在为一门课程创建总结。

请基于原始内容和各章节的摘要，创建一个全面的课程总结。
总结应该概括课程的主要内容、核心概念和学习价值。
使用简体中文，确保语言通俗易懂，并突出课程的关键要点。

原始内容:
{{.content}}

章节摘要:
{{.chapters_summary}}
`))

package service

import (
	"strings"

	"leave_assessment_backend/internal/model"
)

type mcqTemplate struct {
	Question    string
	Correct     string
	Distractors []string
}

type templatePool struct {
	Key   string
	Items []mcqTemplate
}

// fallbackPools 按顺序匹配，主题包含的第一个关键字生效
var fallbackPools = []templatePool{
	{Key: "frontend", Items: []mcqTemplate{
		{
			Question:    "What is the purpose of the Virtual DOM in frontend frameworks?",
			Correct:     "To efficiently update and render UI by diffing changes",
			Distractors: []string{"To store application state on the server", "To compile CSS into JavaScript", "To manage database queries from the browser"},
		},
		{
			Question:    "Which HTML element is used to include a script in a webpage?",
			Correct:     "<script>",
			Distractors: []string{"<link>", "<style>", "<component>"},
		},
		{
			Question:    "Which CSS property is used to change the text color?",
			Correct:     "color",
			Distractors: []string{"font-size", "background", "margin"},
		},
	}},
	{Key: "backend", Items: []mcqTemplate{
		{
			Question:    "What is the primary purpose of a RESTful API?",
			Correct:     "To provide stateless HTTP endpoints for resources",
			Distractors: []string{"To render HTML on the server", "To store files on disk", "To style web pages"},
		},
		{
			Question:    `Which database operations does "CRUD" include?`,
			Correct:     "Create, Read, Update, Delete",
			Distractors: []string{"Compile, Run, Upload, Download", "Connect, Retry, Update, Drop", "Cache, Restore, Undo, Delete"},
		},
		{
			Question:    "What is middleware in a backend framework?",
			Correct:     "A function that processes requests before handlers",
			Distractors: []string{"A frontend styling library", "A database indexing method", "A network protocol"},
		},
	}},
	{Key: "data structures", Items: []mcqTemplate{
		{
			Question:    "Which data structure uses LIFO (last-in, first-out)?",
			Correct:     "Stack",
			Distractors: []string{"Queue", "Tree", "Graph"},
		},
		{
			Question:    "What is the average time complexity to search in a balanced binary search tree?",
			Correct:     "O(log n)",
			Distractors: []string{"O(n)", "O(1)", "O(n log n)"},
		},
	}},
	{Key: "algorithms", Items: []mcqTemplate{
		{
			Question:    "Which sorting algorithm has average-case complexity O(n log n)?",
			Correct:     "Merge sort",
			Distractors: []string{"Bubble sort", "Selection sort", "Insertion sort"},
		},
		{
			Question:    "What technique does dynamic programming use?",
			Correct:     "Reuse previously computed results (memoization)",
			Distractors: []string{"Randomized sampling", "Divide and conquer only"},
		},
	}},
	{Key: "database", Items: []mcqTemplate{
		{
			Question:    "What does ACID stand for in databases?",
			Correct:     "Atomicity, Consistency, Isolation, Durability",
			Distractors: []string{"Availability, Consistency, Integrity, Durability", "Atomicity, Cache, Index, Durability", "Accuracy, Consistency, Isolation, Dependency"},
		},
		{
			Question:    "Which SQL clause is used to filter rows returned by a query?",
			Correct:     "WHERE",
			Distractors: []string{"GROUP BY", "HAVING", "ORDER BY"},
		},
	}},
	{Key: "devops", Items: []mcqTemplate{
		{
			Question:    "What is the purpose of a CI/CD pipeline?",
			Correct:     "Automate build, test, and deployment processes",
			Distractors: []string{"Manage database schemas manually", "Style frontend components", "Serve static files only"},
		},
		{
			Question:    "Which tool is commonly used for container orchestration?",
			Correct:     "Kubernetes",
			Distractors: []string{"Webpack", "Jest"},
		},
	}},
}

var generalPool = templatePool{Key: "general", Items: []mcqTemplate{
	{
		Question:    "Which of these is a version control system?",
		Correct:     "Git",
		Distractors: []string{"Docker", "Postman", "Redis"},
	},
	{
		Question:    "What does HTTP status code 404 mean?",
		Correct:     "The requested resource was not found",
		Distractors: []string{"The server crashed", "The request succeeded", "The client is not authorized"},
	},
	{
		Question:    "Which number system do computers use internally?",
		Correct:     "Binary",
	},
}}

// pickPool 按主题关键字（不区分大小写）选择题库
func pickPool(topic string) templatePool {
	t := strings.ToLower(topic)
	for _, p := range fallbackPools {
		if strings.Contains(t, p.Key) {
			return p
		}
	}
	return generalPool
}

type codingTemplate struct {
	Question  string
	Starter   map[string]string
	TestCases []model.TestCase
}

var codingPool = []codingTemplate{
	{
		Question: "Read two integers separated by a space from standard input and print their sum.",
		Starter: map[string]string{
			"python":     "a, b = map(int, input().split())\n# print the sum of a and b\n",
			"javascript": "const [a, b] = require('fs').readFileSync(0, 'utf8').trim().split(' ').map(Number);\n// print the sum of a and b\n",
		},
		TestCases: []model.TestCase{
			{Input: "2 3", ExpectedOutput: "5"},
			{Input: "10 -4", ExpectedOutput: "6"},
			{Input: "0 0", ExpectedOutput: "0"},
		},
	},
	{
		Question: "Read a single line from standard input and print it reversed.",
		Starter: map[string]string{
			"python":     "s = input()\n# print s reversed\n",
			"javascript": "const s = require('fs').readFileSync(0, 'utf8').trim();\n// print s reversed\n",
		},
		TestCases: []model.TestCase{
			{Input: "hello", ExpectedOutput: "olleh"},
			{Input: "abc", ExpectedOutput: "cba"},
			{Input: "a", ExpectedOutput: "a"},
		},
	},
	{
		Question: "Read a non-negative integer n from standard input and print n! (n factorial).",
		Starter: map[string]string{
			"python":     "n = int(input())\n# print n factorial\n",
			"javascript": "const n = Number(require('fs').readFileSync(0, 'utf8').trim());\n// print n factorial\n",
		},
		TestCases: []model.TestCase{
			{Input: "5", ExpectedOutput: "120"},
			{Input: "0", ExpectedOutput: "1"},
			{Input: "3", ExpectedOutput: "6"},
		},
	},
	{
		Question: "Read space-separated integers from standard input and print the largest one.",
		Starter: map[string]string{
			"python":     "nums = list(map(int, input().split()))\n# print the largest number\n",
			"javascript": "const nums = require('fs').readFileSync(0, 'utf8').trim().split(' ').map(Number);\n// print the largest number\n",
		},
		TestCases: []model.TestCase{
			{Input: "3 9 2", ExpectedOutput: "9"},
			{Input: "-1 -5", ExpectedOutput: "-1"},
			{Input: "7", ExpectedOutput: "7"},
		},
	},
}

func (t codingTemplate) starterFor(language string) string {
	if code, ok := t.Starter[language]; ok {
		return code
	}
	return ""
}

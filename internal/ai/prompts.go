package ai

// Prompt templates. Placeholders are filled with fmt.Sprintf; keep the verb
// order in sync with the call sites.

const classifyIntentPrompt = `Classify the user's intent from the following query.
Extract any relevant entities like skill names or job search terms.

Available intents:
- get_trending_skills (e.g., "show trending skills", "top tech")
- get_trending_roles (e.g., "popular job roles", "trending positions")
- search_jobs (e.g., "find jobs in React", "show Python openings")
- get_statistics (e.g., "market stats", "overall summary")
- run_analysis (e.g., "analyze trends", "deep dive into data")
- scrape_jobs (e.g., "update jobs", "fetch latest listings")
- get_latest_analysis (e.g., "what's the newest report", "latest insights")
- compare_skills (e.g., "compare Java vs Go", "Python vs R")
- get_learning_path (e.g., "how to learn Machine Learning", "study NodeJS")
- answer_question (for general questions not covered by specific intents)
- get_help (if the query is unclear or asking for help)

User Query: %q

Respond in JSON format with 'intent' and 'entities'.
Example for "find jobs in React":
{"intent": "search_jobs", "entities": {"job_query": "React"}}
Example for "compare Python vs JavaScript":
{"intent": "compare_skills", "entities": {"skill1": "Python", "skill2": "JavaScript"}}
Example for "what are the top skills?":
{"intent": "get_trending_skills", "entities": {}}
Example for "Tell me about the market":
{"intent": "answer_question", "entities": {}}`

const trendInsightsPrompt = `Analyze this freelance job market data and provide key insights:

TRENDING SKILLS (Last 30 Days):
%s

TRENDING JOB ROLES:
%s

SKILL CLUSTERS (Technologies often used together):
%s

TOTAL JOBS ANALYZED: %d

Provide:
1. Top 3 emerging trends in the market
2. Skills gaining momentum and why
3. Recommendations for freelancers (which skills to learn)
4. Industry shifts or patterns you notice
5. Predictions for the next quarter

Be specific, data-driven, and actionable. Keep under 400 words.`

const learningPathPrompt = `Create a learning path for someone who wants to learn %s.

Their current skills: %s

Provide:
1. Prerequisites needed
2. Step-by-step learning path (5-7 steps)
3. Estimated time for each step
4. Recommended resources (general types, not specific URLs)
5. Projects to practice

Keep it concise and actionable.`

const compareSkillsPrompt = `Compare these two skills in the job market:

Skill 1: %s
- Job mentions: %s
- Growth rate: %s

Skill 2: %s
- Job mentions: %s
- Growth rate: %s

Provide:
1. Which is more in-demand and why
2. Market trends for each
3. Career opportunities
4. Learning difficulty comparison
5. Recommendation for someone choosing between them

Keep it concise (under 300 words).`

const answerQuestionPrompt = `You are a freelance job market expert. Answer this question based on the provided data:

Question: %s

Market Context:
- Total jobs tracked: %d
- Recent jobs (7d): %d
- Top skills: %s
- Active companies: %d

Additional context: %s

Provide a helpful, accurate answer based on the data. Be specific and cite numbers when relevant.
Keep response under 250 words.`

const summarizeJobsPrompt = `Summarize these job listings and identify key trends:

%s

Provide:
1. Common patterns (2-3 points)
2. Most sought-after skills
3. Notable companies
4. Remote vs location-based trend
5. Overall market insight

Keep it concise (under 200 words).`

package sqlgen

import (
	"fmt"
	"strings"
)

// PromptVersion identifies the ruleset below. Bump it on every edit: cached SQL
// produced under an older ruleset is still served.
const PromptVersion = "2025-05.1"

// SystemPrompt is sent as the system message with every generation request.
const SystemPrompt = "You are an expert SQL generator."

var matchInfoColumns = []string{
	"match_id", "City", "Venue", "Match Type", "Gender", "Season", "Date", "Balls Per Over", "Teams",
	"Player of Match", "Match Number", "Event Name", "Match Referees", "Reserve Umpires", "TV Umpires",
	"Umpires", "Toss Winner", "Toss Decision", "Winner", "Win Method", "Win By Wickets",
}

var matchInningsColumns = []string{
	"match_id", "Inning", "Over", "Ball", "Batter", "Non-striker", "Bowler", "Batter Runs", "Extras",
	"Total Runs", "Extra Types", "Wicket Type", "Player Out", "Fielders",
}

// Seasons lists every season label present in match_info."Season".
var Seasons = []string{
	"2007/08", "2009", "2009/10", "2011", "2012", "2013", "2014", "2015", "2016", "2017", "2018",
	"2019", "2020/21", "2021", "2022", "2023", "2024", "2025",
}

const promptTemplate = `
You are a PostgreSQL expert helping with a cricket database.

Generate a SELECT SQL query (PostgreSQL format) to answer the following question:
%q

Only use these two tables and their columns:

match_info(
  %s
)

match_innings(
  %s
)

Important:
1. Always quote column and table names with double quotes (e.g. "Bowler", not Bowler).
2. When filtering by player names like "dhoni" or "MS Dhoni", always use:
   "Player Out" ILIKE '%%dhoni%%'
3. If you are aggregating any numeric values, cast using "::int" (e.g., SUM("Batter Runs"::int)).
4. Join tables via "match_id" if needed, but don't display it in the select statement.
5. Cast fields like "Over", "Ball", "Batter Runs", etc., to int before comparisons.
6. If the over is 20 return as 19, as overs are counted from 0 to 19 in the database.
7. These are the only available Seasons - %s
8. When checking for consecutive events (like 3 wickets in 3 balls by the same bowler), use the LAG() function with a window:
   - Partition by "match_id", "Inning", "Bowler"
   - Order by "Over"::int, "Ball"::int
   - Pre-filter rows where "Wicket Type" IS NOT NULL to improve performance
   - Then filter where current and previous 2 deliveries all have "Wicket Type" IS NOT NULL
   - Use DISTINCT if needed.
9. Use contextual reasoning to interpret the likely intent of a question. For example, if someone asks 'What is Chennai Super Kings' best score in Bangalore?', interpret it as 'What is Chennai Super Kings' highest overall score at the M. Chinnaswamy Stadium in Bangalore?'
10. Use contextual reasoning to infer the intended meaning of ambiguous or loosely phrased questions. Be flexible in understanding both short forms and long forms of player names, team names, and stadiums.
11. When the user asks for a team's 'best score' in a particular location, interpret this as:
    - The team's highest total runs in a single match at that location.
    - Join match metadata with innings data.
    - Group by match ID, then SUM runs for each group (match).
    - Wrap this in a subquery and apply MAX on the total scores from that subquery.
    - This avoids the SQL error caused by nesting aggregate functions directly (e.g., MAX(SUM(...))).
    - Always fully qualify column names when joining tables with overlapping column names (like "match_id"), e.g. use match_info."match_id" instead of just "match_id".
    - Example structure: SELECT MAX(total_score) FROM (
                           SELECT SUM("Total Runs"::int) AS total_score
                           FROM ...
                           WHERE ...
                           GROUP BY match_info."match_id"
                         ) AS match_totals
    - Handle fuzzy team name matching:
      - Map abbreviations like 'CSK' to full names such as 'Chennai Super Kings'.
      - Support both short and long forms of team names.
    - Handle fuzzy city name matching:
      - Normalize city variations like 'Bangalore' to 'Bengaluru' or other common aliases.
      - Use case-insensitive search (ILIKE) for flexible matching.
12. Only return valid SQL. No explanations or markdown. Don't use semicolons.
`

// BuildPrompt embeds the schema, the disambiguation rules and the question.
func BuildPrompt(question string) string {
	return fmt.Sprintf(promptTemplate,
		question,
		quoteColumns(matchInfoColumns),
		quoteColumns(matchInningsColumns),
		strings.Join(Seasons, ","),
	)
}

func quoteColumns(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = `"` + c + `"`
	}
	return strings.Join(quoted, ", ")
}

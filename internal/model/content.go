package model

// Description はWelcomeページの説明文1行。
type Description struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
}

// Welcome はWelcomeページの内容（シングルトンリソース）。
type Welcome struct {
	Title        string        `json:"title"`
	ButtonText   string        `json:"buttonText"`
	Descriptions []Description `json:"descriptions"`
}

// WelcomeResponse は GET /welcome/ のレスポンスボディ。
type WelcomeResponse struct {
	Code    int     `json:"code"`
	Message string  `json:"message"`
	Data    Welcome `json:"data"`
}

// WorkExperience は職歴1件。
type WorkExperience struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Company      string   `json:"company"`
	Period       string   `json:"period"`
	Achievements []string `json:"achievements"`
}

// Education は学歴1件。
type Education struct {
	ID          int64  `json:"id"`
	Major       string `json:"major"`
	School      string `json:"school"`
	Period      string `json:"period"`
	Degree      string `json:"degree"`
	Description string `json:"description"`
}

// Project はプロジェクト経験1件。
type Project struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	TechStack string   `json:"techStack"`
	Details   []string `json:"details"`
}

// SkillCategory はスキル分類1件。
type SkillCategory struct {
	ID     int64    `json:"id"`
	Name   string   `json:"name"`
	Skills []string `json:"skills"`
}

// Aboutme は「自己紹介」ページの内容（シングルトンリソース）。
type Aboutme struct {
	Work      []WorkExperience `json:"work"`
	Education []Education      `json:"education"`
	Projects  []Project        `json:"projects"`
	Skills    []SkillCategory  `json:"skills"`
}

// AboutmeResponse は GET /aboutme/ のレスポンスボディ。
type AboutmeResponse struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Data    *Aboutme `json:"data"`
}

// SectionType は自己紹介セクションの種類。
type SectionType string

const (
	SectionWork      SectionType = "work"
	SectionEducation SectionType = "education"
	SectionProjects  SectionType = "projects"
	SectionSkills    SectionType = "skills"
)

// Section は自己紹介ページに並ぶ1セクション。
// Content は Type に応じたスライス（[]WorkExperience など）。
type Section struct {
	ID      int         `json:"id"`
	Type    SectionType `json:"type"`
	Title   string      `json:"title"`
	Icon    string      `json:"icon"`
	Content any         `json:"content"`
}

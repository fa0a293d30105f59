package mockapi

import (
	"golang.org/x/crypto/bcrypt"

	"school_exam_client/internal/model"
)

// seed 预置开发用户和两套题组：一套限时考试、一套练习
func (s *Server) seed() {
	hash := func(pw string) []byte {
		h, _ := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
		return h
	}

	s.users["student@dev.local"] = devUser{
		ID:           1,
		Email:        "student@dev.local",
		PasswordHash: hash("student123"),
		Role:         model.Student,
		TenantID:     "dev-school",
	}
	s.users["teacher@dev.local"] = devUser{
		ID:           2,
		Email:        "teacher@dev.local",
		PasswordHash: hash("teacher123"),
		Role:         model.Teacher,
		TenantID:     "dev-school",
	}

	s.sets["math-final"] = &QuestionSet{
		ID:              "math-final",
		Title:           "数学期末测验",
		DurationSeconds: 1800,
		Published:       true,
		Questions: []model.Question{
			{
				ID:      "q1",
				Type:    model.QuestionSingleChoice,
				Content: "7 × 8 = ?",
				Options: map[string]string{
					"A": "54", "B": "56", "C": "58", "D": "64",
				},
				CorrectAnswer: "B",
				Order:         1,
			},
			{
				ID:      "q2",
				Type:    model.QuestionTrueFalse,
				Content: "0 是自然数。",
				Options: map[string]string{
					"T": "对", "F": "错",
				},
				CorrectAnswer: "T",
				Order:         2,
			},
			{
				ID:            "q3",
				Type:          model.QuestionShortAnswer,
				Content:       "一个三角形的内角和是多少度？（填数字）",
				CorrectAnswer: "180",
				Order:         3,
			},
		},
	}

	s.sets["grammar-drill"] = &QuestionSet{
		ID:        "grammar-drill",
		Title:     "语法练习",
		Practice:  true,
		Published: true,
		Questions: []model.Question{
			{
				ID:      "g1",
				Type:    model.QuestionSingleChoice,
				Content: "She ___ to school every day.",
				Options: map[string]string{
					"A": "go", "B": "goes", "C": "going",
				},
				CorrectAnswer: "B",
				Order:         1,
			},
			{
				ID:      "g2",
				Type:    model.QuestionMultiChoice,
				Content: "下列哪些是代词？",
				Options: map[string]string{
					"A": "he", "B": "run", "C": "they", "D": "blue",
				},
				CorrectAnswer: "A,C",
				Order:         2,
			},
		},
	}
}

package model

type UserRole string

const (
	Student     UserRole = "student"
	Teacher     UserRole = "teacher"
	SchoolAdmin UserRole = "school_admin"
	SuperAdmin  UserRole = "super_admin"
)

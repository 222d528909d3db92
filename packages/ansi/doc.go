// Package ansi renders terminal color escape sequences for verif reports.
package ansi
